package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthroughAdvisorApprovesWithNeutralConfidence(t *testing.T) {
	resp, err := PassthroughAdvisor{}.Evaluate(context.Background(), AdvisorRequest{Kind: "recovery", Symbol: "EURUSD"})
	require.NoError(t, err)
	assert.True(t, resp.Approve)
	assert.Equal(t, 0.5, resp.Confidence)
}
