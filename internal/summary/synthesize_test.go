package summary

import (
	"context"
	"strings"
	"testing"

	"aifiles/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordCountNaiveSplit(t *testing.T) {
	assert.Equal(t, 1, WordCount(""))
	assert.Equal(t, 1, WordCount("single"))
	assert.Equal(t, 4, WordCount("a b  c"))
	assert.Equal(t, 2, WordCount("line one\nline"))
}

func TestClassifyPrecedence(t *testing.T) {
	assert.Equal(t, KindActionItems, Classify("Executive ACTION plan"))
	assert.Equal(t, KindActionItems, Classify("list the transactions"))
	assert.Equal(t, KindExecutive, Classify("for EXECUTIVES"))
	assert.Equal(t, KindGeneric, Classify("Extract key decisions"))
	assert.Equal(t, KindActionItems, Classify("give action items for executives"))
	assert.True(t, strings.HasPrefix(Synthesize("x", "give action items for executives"), "# Action Items Summary"))
}

func TestSynthesizeActionItems(t *testing.T) {
	out := Synthesize("one two three", "Highlight only action items")
	assert.True(t, strings.HasPrefix(out, "# Action Items Summary\n\nBased on the uploaded transcript (3 words), here are the key action items:"))
	assert.True(t, strings.HasSuffix(out, "**Next Meeting:** Scheduled for next Tuesday at 2 PM EST"))
}

func TestSynthesizeExecutive(t *testing.T) {
	out := Synthesize("a b c d e", "Summarize for Executives")
	assert.True(t, strings.HasPrefix(out, "# Executive Summary\n\n## Key Highlights\nThis 5-word transcript"))
	assert.Contains(t, out, "**Impact Level:** High - Requires immediate executive review and approval")
}

func TestSynthesizeGenericEchoesInstruction(t *testing.T) {
	out := Synthesize("", `Compare "plans" 100%`)
	assert.Contains(t, out, `This document summarizes a 1-word transcript based on your custom instructions: "Compare "plans" 100%"`)
	assert.True(t, strings.HasPrefix(out, "# Transcript Summary\n\n## Overview\n"))
}

func TestSynthesizeDeterministic(t *testing.T) {
	assert.Equal(t, Synthesize("x y", "recap"), Synthesize("x y", "recap"))
}

func TestRulesSummarizer(t *testing.T) {
	doc := &models.UploadedDocument{Name: "n.txt", Content: "alpha beta"}
	out, err := Rules{}.Summarize(context.Background(), doc, "action")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 words)")

	_, err = Rules{}.Summarize(context.Background(), nil, "action")
	assert.Error(t, err)
}
