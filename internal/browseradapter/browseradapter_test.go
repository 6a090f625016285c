package browseradapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsChallengeTitle(t *testing.T) {
	assert.True(t, isChallengeTitle("Just a moment..."))
	assert.True(t, isChallengeTitle("Checking your browser..."))
	assert.False(t, isChallengeTitle("Category - Example Store"))
}

func TestStubAdapterRoundTrip(t *testing.T) {
	a := NewStubAdapter()
	a.AddPage("https://shop.example/cat", &StubPage{
		HTML:       "<nav></nav>",
		Screenshot: []byte("png-bytes"),
		Elements: map[string][]Element{
			"nav a": {{Text: "Electronics", HREF: "/electronics"}},
		},
	})

	ctx, err := a.NewContext(context.Background())
	require.NoError(t, err)
	defer ctx.Close()

	require.NoError(t, ctx.Goto(context.Background(), "https://shop.example/cat"))
	elements, err := ctx.Query(context.Background(), "nav a")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, "/electronics", elements[0].HREF)

	html, err := ctx.DOMSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<nav></nav>", html)
}

func TestStubAdapterRejectsUnknownURL(t *testing.T) {
	a := NewStubAdapter()
	ctx, err := a.NewContext(context.Background())
	require.NoError(t, err)

	err = ctx.Goto(context.Background(), "https://unknown.example")
	assert.Error(t, err)
}
