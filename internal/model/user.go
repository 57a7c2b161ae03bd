package model

import "time"

// User is a test taker. Email is matched case-insensitively.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// UpsertUserRequest is the public registration payload.
type UpsertUserRequest struct {
	Name  string `json:"name" binding:"required,notblank,max=100"`
	Age   int    `json:"age" binding:"required,min=1,max=120"`
	Email string `json:"email" binding:"required,email,max=254"`
	Phone string `json:"phone" binding:"required,notblank,max=32"`
}

// UpdateUserRequest is the admin payload for editing a user. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
	Age   *int    `json:"age" binding:"omitempty,min=1,max=120"`
	Email *string `json:"email" binding:"omitempty,email,max=254"`
	Phone *string `json:"phone" binding:"omitempty,min=1,max=32"`
}

// Apply copies the non-nil fields of r onto u.
func (r UpdateUserRequest) Apply(u *User) {
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Age != nil {
		u.Age = *r.Age
	}
	if r.Email != nil {
		u.Email = *r.Email
	}
	if r.Phone != nil {
		u.Phone = *r.Phone
	}
}
