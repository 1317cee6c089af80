package casing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyConversions(t *testing.T) {
	cases := map[string]string{
		"studentGroup":      "student_group",
		"difficultyWeight":  "difficulty_weight",
		"id":                "id",
		"pinnedTimeslotIdx": "pinned_timeslot_idx",
	}
	for camel, snake := range cases {
		assert.Equal(t, snake, SnakeKey(camel))
		assert.Equal(t, camel, CamelKey(snake))
	}
	assert.Equal(t, "already_snake", SnakeKey("already_snake"))
	assert.Equal(t, "alreadyCamel", CamelKey("alreadyCamel"))
}

func TestTransformRecursesThroughNestedArrays(t *testing.T) {
	doc := map[string]interface{}{
		"lessons": []interface{}{
			map[string]interface{}{
				"student_group": "CS-1",
				"timeslot":      map[string]interface{}{"day_of_week": "MONDAY", "start_time": "08:30"},
			},
		},
		"hard_score": 0,
	}

	camel := ToCamel(doc).(map[string]interface{})
	lesson := camel["lessons"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "CS-1", lesson["studentGroup"])
	assert.Equal(t, "MONDAY", lesson["timeslot"].(map[string]interface{})["dayOfWeek"])
	assert.Contains(t, camel, "hardScore")

	assert.Equal(t, doc, ToSnake(camel))
}

func TestTransformLeavesValuesAlone(t *testing.T) {
	doc := map[string]interface{}{"subject": "student_group notes"}
	out := ToCamel(doc).(map[string]interface{})
	assert.Equal(t, "student_group notes", out["subject"])
}

func TestTransformJSONKeepsNumbers(t *testing.T) {
	out, err := TransformJSON([]byte(`{"difficulty_weight":0.85,"items":[{"room_id":12345678901234567890}]}`), CamelKey)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.JSONEq(t, `0.85`, string(decoded["difficultyWeight"]))
	assert.JSONEq(t, `[{"roomId":12345678901234567890}]`, string(decoded["items"]))
}

func TestTransformJSONRejectsGarbage(t *testing.T) {
	_, err := TransformJSON([]byte(`{"a":`), SnakeKey)
	assert.Error(t, err)
}
