package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// Principal 鉴权后的调用方身份，角色只用于路由访问控制
type Principal struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

// CanActFor 学生只能写自己的进度，教师和管理员可以代写
func (p Principal) CanActFor(userID string) bool {
	return p.ID == userID || p.Role == Teacher || p.Role == Admin
}
