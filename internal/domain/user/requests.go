package user

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest has no role field; registration always yields RoleUser.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required,max=100"`
}

// UpdateRequest lists the only fields a caller may change.
// Nil means "leave unchanged".
type UpdateRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	Password *string `json:"password" binding:"omitempty"`
}

// UpdatableFields is the whitelist checked against raw update bodies.
var UpdatableFields = map[string]struct{}{
	"name":     {},
	"password": {},
}

func (r UpdateRequest) Empty() bool {
	return r.Name == nil && r.Password == nil
}

type ListFilter struct {
	Page  int
	Limit int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// keeps Offset far from int overflow; any page this deep is empty anyway
	maxPage = 1 << 24
)

func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}
