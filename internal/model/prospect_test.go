package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_Rank(t *testing.T) {
	assert.Equal(t, 3, PriorityHigh.Rank())
	assert.Equal(t, 2, PriorityMedium.Rank())
	assert.Equal(t, 1, PriorityLow.Rank())
	assert.Equal(t, 1, Priority("").Rank())
	assert.Equal(t, 1, Priority("urgent").Rank())
}

func TestSortProspects(t *testing.T) {
	prospects := []Prospect{
		{Name: "A", AIAnalysis: AIAnalysis{Priority: PriorityHigh, DigitalPresenceScore: 50}},
		{Name: "B", AIAnalysis: AIAnalysis{Priority: PriorityHigh, DigitalPresenceScore: 90}},
		{Name: "C", AIAnalysis: AIAnalysis{Priority: PriorityMedium, DigitalPresenceScore: 50}},
		{Name: "D", AIAnalysis: AIAnalysis{Priority: PriorityLow, DigitalPresenceScore: 10}},
	}

	SortProspects(prospects)

	names := []string{prospects[0].Name, prospects[1].Name, prospects[2].Name, prospects[3].Name}
	assert.Equal(t, []string{"B", "A", "C", "D"}, names)
}

func TestSortProspects_MissingFieldsTreatedAsLowAndZero(t *testing.T) {
	prospects := []Prospect{
		{Name: "unranked"},
		{Name: "low-10", AIAnalysis: AIAnalysis{Priority: PriorityLow, DigitalPresenceScore: 10}},
		{Name: "medium", AIAnalysis: AIAnalysis{Priority: PriorityMedium}},
	}

	SortProspects(prospects)

	assert.Equal(t, "medium", prospects[0].Name)
	assert.Equal(t, "low-10", prospects[1].Name)
	assert.Equal(t, "unranked", prospects[2].Name)
}

func TestSortProspects_StableOnExactTies(t *testing.T) {
	prospects := []Prospect{
		{Name: "first", AIAnalysis: AIAnalysis{Priority: PriorityHigh, DigitalPresenceScore: 50}},
		{Name: "second", AIAnalysis: AIAnalysis{Priority: PriorityHigh, DigitalPresenceScore: 50}},
	}

	SortProspects(prospects)

	assert.Equal(t, "first", prospects[0].Name)
	assert.Equal(t, "second", prospects[1].Name)
}

func TestDefaultWebsiteAnalysis(t *testing.T) {
	wa := DefaultWebsiteAnalysis("no website")

	assert.False(t, wa.HasModernDesign)
	assert.False(t, wa.IsMobileResponsive)
	assert.False(t, wa.HasSEO)
	assert.Equal(t, "N/A", wa.Title)
	assert.Equal(t, "N/A", wa.Description)
	assert.Empty(t, wa.Content)
	assert.Zero(t, wa.LoadTimeMS)
	assert.Empty(t, wa.SocialLinks)
	assert.True(t, wa.Degraded)
	assert.Equal(t, "no website", wa.DegradedReason)
}

func TestDefaultAIAnalysis(t *testing.T) {
	ai := DefaultAIAnalysis("llm call failed")

	assert.Zero(t, ai.DigitalPresenceScore)
	assert.Equal(t, "Unknown", ai.WebsiteQuality)
	assert.Equal(t, "Unknown", ai.SEORating)
	assert.Equal(t, "Unknown", ai.SocialMediaPresence)
	assert.Equal(t, "Unknown", ai.OnlineReputation)
	require.Len(t, ai.PainPoints, 1)
	assert.Equal(t, FallbackPainPoint, ai.PainPoints[0])
	assert.Equal(t, PriorityLow, ai.Priority)
	assert.True(t, ai.Degraded)
}
