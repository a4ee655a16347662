package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ParseImageRef Tests
// =============================================================================

func TestParseImageRef_DefaultsTag(t *testing.T) {
	ref, err := ParseImageRef("redis")
	require.NoError(t, err)
	assert.Equal(t, ImageRef{Name: "redis", Tag: "latest"}, ref)
}

func TestParseImageRef_ExplicitTag(t *testing.T) {
	ref, err := ParseImageRef("myapp:v2")
	require.NoError(t, err)
	assert.Equal(t, ImageRef{Name: "myapp", Tag: "v2"}, ref)
	assert.Equal(t, "myapp:v2", ref.String())
}

func TestParseImageRef_Namespaced(t *testing.T) {
	ref, err := ParseImageRef("acme/api:1.0")
	require.NoError(t, err)
	assert.Equal(t, "acme/api", ref.Name)
	assert.Equal(t, "1.0", ref.Tag)
}

func TestParseImageRef_RegistryPortIsNotATag(t *testing.T) {
	ref, err := ParseImageRef("localhost:5000/app")
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000/app", ref.Name)
	assert.Equal(t, "latest", ref.Tag)
}

func TestParseImageRef_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "app:", ":v1"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseImageRef(in)
			assert.ErrorIs(t, err, ErrImageRefInvalid)
		})
	}
}

// =============================================================================
// Source Directory Tests
// =============================================================================

func TestSourceDirName(t *testing.T) {
	assert.Equal(t, "web_latest", SourceDirName("web", ""))
	assert.Equal(t, "web_v1", SourceDirName("web", "v1"))
	assert.Equal(t, "acme_web_v1", SourceDirName("acme/web", "v1"))
}

func TestSourceDirName_Deterministic(t *testing.T) {
	img := Image{Name: "web", Tag: "v1"}
	assert.Equal(t, img.SourceDir(), img.SourceDir())
	assert.Equal(t, SourceDirName("web", "v1"), img.SourceDir())
}

// =============================================================================
// Name and Tag Validation Tests
// =============================================================================

func TestValidateImageName(t *testing.T) {
	for _, name := range []string{"web", "acme/web", "user_app", "a.b-c", "localhost:5000/app"} {
		assert.NoError(t, ValidateImageName(name), name)
	}
	for _, name := range []string{"Web", "a/b/c", "web:v1", "-web", "web-", "a__b_", "docker.io/web", "web@sha256:abc"} {
		assert.ErrorIs(t, ValidateImageName(name), ErrImageNameInvalid, name)
	}
	assert.ErrorIs(t, ValidateImageName(""), ErrImageNameRequired)
}

func TestValidateTag(t *testing.T) {
	for _, tag := range []string{"latest", "v1.2.3", "_build", "RC-1"} {
		assert.NoError(t, ValidateTag(tag), tag)
	}
	for _, tag := range []string{"", ".v1", "-v1", "v1/2", "v 1", strings.Repeat("a", 129)} {
		assert.ErrorIs(t, ValidateTag(tag), ErrImageTagInvalid, tag)
	}
}

// =============================================================================
// NewImage Tests
// =============================================================================

func TestNewImage_Valid(t *testing.T) {
	img, err := NewImage("web", "", "https://example.com/web.git", "node")
	require.NoError(t, err)

	assert.NotEmpty(t, img.ID)
	assert.Equal(t, "latest", img.Tag)
	assert.Equal(t, "web:latest", img.Ref().String())
	assert.NotZero(t, img.CreatedAt)
}

func TestNewImage_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		img    [4]string
		expect error
	}{
		{"missing name", [4]string{"", "v1", "r", "bt"}, ErrImageNameRequired},
		{"uppercase name", [4]string{"Web", "v1", "r", "bt"}, ErrImageNameInvalid},
		{"too many namespaces", [4]string{"a/b/c", "v1", "r", "bt"}, ErrImageNameInvalid},
		{"bad tag", [4]string{"web", "-v1", "r", "bt"}, ErrImageTagInvalid},
		{"missing remote", [4]string{"web", "v1", "", "bt"}, ErrImageRemoteRequired},
		{"missing template", [4]string{"web", "v1", "r", ""}, ErrTemplateRefRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImage(tt.img[0], tt.img[1], tt.img[2], tt.img[3])
			assert.ErrorIs(t, err, tt.expect)
		})
	}
}
