package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createdPayload(achievementID int64) IRObject {
	return IRObject{
		"achievementId": IRInt(achievementID),
		"userId":        IRInt(7),
		"periodId":      IRInt(1),
		"levelId":       IRInt(1),
		"achievedAt":    IRString("2024-01-05T10:00:00.000Z"),
	}
}

func TestEventIDDeterminism(t *testing.T) {
	id1, err := EventID("AchievementCreated", createdPayload(10))
	require.NoError(t, err)
	id2, err := EventID("AchievementCreated", createdPayload(10))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestEventIDChangesWithInput(t *testing.T) {
	base := MustEventID("AchievementCreated", createdPayload(10))

	assert.NotEqual(t, base, MustEventID("AchievementCreated", createdPayload(11)))
	assert.NotEqual(t, base, MustEventID("AchievementPlatinumCreated", createdPayload(10)))
}

func TestEventIDRejectsInvalidPayload(t *testing.T) {
	_, err := EventID("AchievementCreated", IRObject{"bad": nil})
	assert.Error(t, err)
	assert.Panics(t, func() { MustEventID("AchievementCreated", IRObject{"bad": nil}) })
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainEvent, data), hashWithDomain(DomainDecision, data))
}

func TestDecisionHash(t *testing.T) {
	a, err := DecisionHash(IRArray{IRObject{"achievementId": IRInt(1), "kind": IRString("unlock")}})
	require.NoError(t, err)
	b, err := DecisionHash(IRArray{IRObject{"kind": IRString("unlock"), "achievementId": IRInt(1)}})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not matter")

	c, err := DecisionHash(IRArray{})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
