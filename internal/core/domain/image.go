// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/distribution/reference"
	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrImageNameRequired   = errors.New("image name is required")
	ErrImageNameInvalid    = errors.New("image name must be a lowercase docker repository name with at most one '/' namespace separator")
	ErrImageTagInvalid     = errors.New("image tag must match the docker tag format")
	ErrImageRemoteRequired = errors.New("image remote is required")
	ErrImageRefInvalid     = errors.New("image reference must be name or name:tag")
	ErrTemplateRefRequired = errors.New("build template ref is required")
)

// DefaultTag is applied wherever an image tag is omitted.
const DefaultTag = "latest"

// =============================================================================
// Image
// =============================================================================

// Image is a buildable container artifact definition: a source repository
// plus the build template used to generate its Dockerfile.
type Image struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name" validate:"required,max=255"`
	Tag              string    `json:"tag" db:"tag" validate:"required,max=128"`
	Remote           string    `json:"remote" db:"remote" validate:"required"`
	BuildTemplateRef string    `json:"bt_ref" db:"bt_ref" validate:"required"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NewImage creates a validated Image with a normalized tag.
func NewImage(name, tag, remote, buildTemplateRef string) (*Image, error) {
	now := time.Now()
	img := &Image{
		ID:               uuid.New().String(),
		Name:             strings.TrimSpace(name),
		Tag:              NormalizeTag(tag),
		Remote:           strings.TrimSpace(remote),
		BuildTemplateRef: strings.TrimSpace(buildTemplateRef),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Ref returns the image identity as used by the container runtime.
func (i Image) Ref() ImageRef {
	return ImageRef{Name: i.Name, Tag: NormalizeTag(i.Tag)}
}

// SourceDir returns the name of the directory holding this image's source tree.
func (i Image) SourceDir() string {
	return SourceDirName(i.Name, i.Tag)
}

// Validate checks the image fields.
func (i Image) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrImageNameRequired
	}
	if err := ValidateImageName(i.Name); err != nil {
		return err
	}
	if err := ValidateTag(NormalizeTag(i.Tag)); err != nil {
		return err
	}
	if strings.TrimSpace(i.Remote) == "" {
		return ErrImageRemoteRequired
	}
	if strings.TrimSpace(i.BuildTemplateRef) == "" {
		return ErrTemplateRefRequired
	}
	return validateStruct(i)
}

// =============================================================================
// Image References
// =============================================================================

// ImageRef is a normalized (name, tag) pair.
type ImageRef struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// String returns "name:tag".
func (r ImageRef) String() string {
	return r.Name + ":" + r.Tag
}

// ParseImageRef splits a "name[:tag]" reference. The tag defaults to
// "latest". A colon inside a registry host ("host:5000/app") is not
// treated as a tag separator.
//
//	ParseImageRef("redis")         // {redis latest}
//	ParseImageRef("myapp:v2")      // {myapp v2}
//	ParseImageRef("user/app:1.0")  // {user/app 1.0}
func ParseImageRef(s string) (ImageRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ImageRef{}, ErrImageRefInvalid
	}

	name, tag := s, ""
	if idx := strings.LastIndex(s, ":"); idx >= 0 && !strings.Contains(s[idx+1:], "/") {
		name, tag = s[:idx], s[idx+1:]
		if tag == "" {
			return ImageRef{}, ErrImageRefInvalid
		}
	}
	if name == "" {
		return ImageRef{}, ErrImageRefInvalid
	}

	return ImageRef{Name: name, Tag: NormalizeTag(tag)}, nil
}

// NormalizeTag returns the tag, or DefaultTag when it is blank.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return DefaultTag
	}
	return tag
}

// SourceDirName derives the deterministic source-tree directory name for an
// image. Namespace separators are flattened so every tree sits directly under
// the codes directory.
func SourceDirName(name, tag string) string {
	flat := strings.ReplaceAll(strings.TrimSpace(name), "/", "_")
	return flat + "_" + NormalizeTag(tag)
}

// ValidateImageName checks a repository name against the docker reference
// grammar. The name must be in familiar form ("web", "acme/web") with at
// most one namespace separator and no tag or digest.
func ValidateImageName(name string) error {
	if name == "" {
		return ErrImageNameRequired
	}
	if strings.Count(name, "/") > 1 {
		return ErrImageNameInvalid
	}
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return errors.Join(ErrImageNameInvalid, err)
	}
	if !reference.IsNameOnly(named) || reference.FamiliarName(named) != name {
		return ErrImageNameInvalid
	}
	return nil
}

// ValidateTag checks a tag against the docker reference grammar.
func ValidateTag(tag string) error {
	if tag == "" || reference.TagRegexp.FindString(tag) != tag {
		return ErrImageTagInvalid
	}
	return nil
}
