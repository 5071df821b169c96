package validator

import "encoding/json"

// QuestionCreateRequest represents one multiple-choice question of a lesson or module quiz
type QuestionCreateRequest struct {
	QuestionText  string `json:"question_text" validate:"required,notblank,max=5000"`
	OptionA       string `json:"option_a" validate:"required,notblank,max=1000"`
	OptionB       string `json:"option_b" validate:"required,notblank,max=1000"`
	OptionC       string `json:"option_c" validate:"required,notblank,max=1000"`
	OptionD       string `json:"option_d" validate:"required,notblank,max=1000"`
	CorrectOption string `json:"correct_option" validate:"required,option_letter"`
}

// GradeRequest carries the raw answer list so a non-list payload can be reported as invalid input
type GradeRequest struct {
	AnswerList json.RawMessage `json:"answer_list"`
}

// FinishRequest records a quiz result. StudentID defaults to the caller.
type FinishRequest struct {
	StudentID    uint `json:"student_id" validate:"omitempty,min=1"`
	CorrectCount int  `json:"correct_count" validate:"min=0"`
}

// ===== SUPPORT CHAT =====

type TicketRequest struct {
	TicketID uint `json:"ticket_id" validate:"required,min=1"`
}

type SendMessageRequest struct {
	TicketID uint    `json:"ticket_id" validate:"required,min=1"`
	Message  string  `json:"message" validate:"max=5000"`
	FilePath *string `json:"file_path" validate:"omitempty,max=500"`
}

type CreateTicketRequest struct {
	Message  string  `json:"message" validate:"max=5000"`
	FilePath *string `json:"file_path" validate:"omitempty,max=500"`
}

type EditMessageRequest struct {
	MessageID uint   `json:"message_id" validate:"required,min=1"`
	Message   string `json:"message" validate:"required,notblank,max=5000"`
}

type MessageRequest struct {
	MessageID uint `json:"message_id" validate:"required,min=1"`
}
