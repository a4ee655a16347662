package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTemplateNameRequired = errors.New("build template name is required")
	ErrTemplateRefInvalid   = errors.New("build template ref may only contain letters, digits, '.', '_', '-' and '/'")
)

// BuildTemplate is a reusable ordered list of Dockerfile instruction blocks,
// addressed by a unique ref.
type BuildTemplate struct {
	ID        string    `json:"id" db:"id"`
	Ref       string    `json:"ref" db:"ref" validate:"required,max=255"`
	Name      string    `json:"name" db:"name" validate:"required,max=255"`
	Steps     []string  `json:"steps" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewBuildTemplate creates a validated BuildTemplate. A nil step list is
// stored as empty.
func NewBuildTemplate(ref, name string, steps []string) (*BuildTemplate, error) {
	now := time.Now()
	bt := &BuildTemplate{
		ID:        uuid.New().String(),
		Ref:       strings.TrimSpace(ref),
		Name:      strings.TrimSpace(name),
		Steps:     copySteps(steps),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := bt.Validate(); err != nil {
		return nil, err
	}
	return bt, nil
}

// Replace swaps name and steps wholesale. The ref is immutable.
func (b *BuildTemplate) Replace(name string, steps []string) error {
	next := *b
	next.Name = strings.TrimSpace(name)
	next.Steps = copySteps(steps)
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now()
	*b = next
	return nil
}

// Validate checks the template fields.
func (b BuildTemplate) Validate() error {
	if strings.TrimSpace(b.Ref) == "" {
		return ErrTemplateRefRequired
	}
	for _, r := range b.Ref {
		if !isAlnum(r) && !strings.ContainsRune("._-/", r) {
			return ErrTemplateRefInvalid
		}
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrTemplateNameRequired
	}
	return validateStruct(b)
}

func copySteps(steps []string) []string {
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
