package model

import (
	"encoding/json"
)

// Bank identifies one of the question banks.
type Bank string

const (
	BankPlacement Bank = "placement"
	BankSATVerbal Bank = "sat_verbal"
	BankSATMath   Bank = "sat_math"
)

// AllBanks lists every bank in seeding order.
var AllBanks = []Bank{BankPlacement, BankSATVerbal, BankSATMath}

// ParseBank returns the bank for s, or false if s names no bank.
func ParseBank(s string) (Bank, bool) {
	switch Bank(s) {
	case BankPlacement, BankSATVerbal, BankSATMath:
		return Bank(s), true
	}
	return "", false
}

// Section is the SAT module a bank feeds. Placement questions have none.
func (b Bank) Section() Section {
	switch b {
	case BankSATVerbal:
		return SectionVerbal
	case BankSATMath:
		return SectionMath
	}
	return ""
}

// ExamType is the exam a bank belongs to.
func (b Bank) ExamType() ExamType {
	if b == BankPlacement {
		return ExamTypePlacement
	}
	return ExamTypeSAT
}

// Section is an SAT module.
type Section string

const (
	SectionVerbal Section = "verbal"
	SectionMath   Section = "math"
)

// Bank returns the SAT bank backing the section.
func (s Section) Bank() Bank {
	if s == SectionMath {
		return BankSATMath
	}
	return BankSATVerbal
}

// QuestionKind decides how a question is answered and graded.
type QuestionKind string

const (
	QuestionKindChoice QuestionKind = "choice"
	QuestionKindText   QuestionKind = "text"
)

// Question is a bank record including its answer key.
type Question struct {
	ID           int             `json:"id"`
	Bank         Bank            `json:"bank"`
	Section      Section         `json:"section,omitempty"`
	Text         string          `json:"text"`
	Image        string          `json:"image,omitempty"`
	Chart        json.RawMessage `json:"chart,omitempty"`
	Kind         QuestionKind    `json:"kind"`
	Options      []string        `json:"options,omitempty"`
	CorrectIndex *int            `json:"correct_index,omitempty"`
	Answer       string          `json:"answer,omitempty"`
}

// DisplayQuestion is what a test taker sees: no answer key.
type DisplayQuestion struct {
	ID      int             `json:"id"`
	Section Section         `json:"section,omitempty"`
	Text    string          `json:"text"`
	Image   string          `json:"image,omitempty"`
	Chart   json.RawMessage `json:"chart,omitempty"`
	Kind    QuestionKind    `json:"kind"`
	Options []string        `json:"options,omitempty"`
}

// Display strips the answer key.
func (q Question) Display() DisplayQuestion {
	return DisplayQuestion{
		ID:      q.ID,
		Section: q.Section,
		Text:    q.Text,
		Image:   q.Image,
		Chart:   q.Chart,
		Kind:    q.Kind,
		Options: q.Options,
	}
}

// UpsertQuestionRequest is the admin payload for creating or replacing a question.
// Image and Chart keep their stored values when omitted.
type UpsertQuestionRequest struct {
	ID           int             `json:"id" binding:"required,min=1"`
	Text         string          `json:"text" binding:"required,notblank,max=4000"`
	Image        *string         `json:"image" binding:"omitempty,max=1000"`
	Chart        json.RawMessage `json:"chart"`
	Kind         QuestionKind    `json:"kind" binding:"omitempty,oneof=choice text"`
	Options      []string        `json:"options" binding:"omitempty,max=10"`
	CorrectIndex *int            `json:"correct_index"`
	Answer       string          `json:"answer" binding:"max=200"`
}
