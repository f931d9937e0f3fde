package dto

// CreateUserRequest registers a student or instructor. Stage and department
// are mandatory for students only, enforced in the service.
type CreateUserRequest struct {
	Name       string `json:"name" validate:"required,min=3,max=50"`
	Email      string `json:"email" validate:"required,email,max=100"`
	Role       string `json:"role" validate:"required,oneof=STUDENT INSTRUCTOR"`
	Stage      string `json:"stage" validate:"max=200"`
	Department string `json:"department" validate:"max=200"`
}

// UpdateUserRequest modifies mutable user fields.
type UpdateUserRequest struct {
	Name       string `json:"name" validate:"omitempty,min=3,max=50"`
	Email      string `json:"email" validate:"omitempty,email,max=100"`
	Stage      string `json:"stage" validate:"max=200"`
	Department string `json:"department" validate:"max=200"`
}

// CreateSubjectRequest registers a subject owned by an instructor.
type CreateSubjectRequest struct {
	Name         string `json:"name" validate:"required,min=3,max=100"`
	InstructorID string `json:"instructor_id" validate:"required,uuid"`
	Stage        string `json:"stage" validate:"required,max=200"`
	Department   string `json:"department" validate:"required,max=200"`
}

// UpdateSubjectRequest renames a subject. Other fields stay fixed because
// historical sessions resolve against them.
type UpdateSubjectRequest struct {
	Name string `json:"name" validate:"required,min=3,max=100"`
}
