package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// ProjectSlug Tests
// =============================================================================

func TestProjectSlug_KeepsAllowed(t *testing.T) {
	assert.Equal(t, "my-app_1", ProjectSlug("my-app_1"))
}

func TestProjectSlug_Lowercases(t *testing.T) {
	assert.Equal(t, "shop", ProjectSlug("SHOP"))
}

func TestProjectSlug_SpacesBecomeHyphens(t *testing.T) {
	assert.Equal(t, "my-shop", ProjectSlug("My Shop"))
}

func TestProjectSlug_DropsOthers(t *testing.T) {
	assert.Equal(t, "webv2", ProjectSlug("web.v2"))
	assert.Equal(t, "caf", ProjectSlug("café"))
}

func TestProjectSlug_TrimsLeadingSeparators(t *testing.T) {
	assert.Equal(t, "shop", ProjectSlug("_Shop"))
	assert.Equal(t, "shop", ProjectSlug("-_shop"))
}

func TestProjectSlug_Empty(t *testing.T) {
	assert.Equal(t, "", ProjectSlug(""))
	assert.Equal(t, "", ProjectSlug("..."))
}
