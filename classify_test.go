package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		text string
		want Classification
		tag  string
	}{
		{"hello", Simple, "greeting"},
		{"What is for lunch today?", Simple, "meals"},
		{"where is the engineering building", Simple, "location"},
		{"도서관 몇 시까지 해?", Simple, "library"},
		{"2024 admission-year computer-science requirements", Complex, "requirements"},
		{"24학번 졸업요건 알려줘", Complex, "requirements"},
		{"compare the dorm and the library", Complex, "comparison"},
		{"why was the notice removed", Complex, "reasoning"},
		{"예약 가능한 좌석", Complex, "personal"},
		{"one? two?", Complex, "multi_question"},
		{strings.Repeat("x", DefaultLongQuestionRunes+1), Complex, "long"},
		{"xyzzy", Simple, "default"},
		{"", Simple, "default"},
	}
	for _, tc := range cases {
		got, tags := Classifier{}.Classify(tc.text)
		assert.Equal(t, tc.want, got, tc.text)
		assert.Contains(t, tags, tc.tag, tc.text)
	}
}

func TestClassifyComplexWinsOverSimple(t *testing.T) {
	got, tags := Classifier{}.Classify("where is the lab and what are the graduation requirements")
	assert.Equal(t, Complex, got)
	assert.Equal(t, []string{"requirements"}, tags)
}

func TestClassifyDefaultIsConfigurable(t *testing.T) {
	got, _ := Classifier{DefaultComplex: true}.Classify("xyzzy")
	assert.Equal(t, Complex, got)

	got, _ = Classifier{LongQuestionRunes: 3}.Classify("abcd")
	assert.Equal(t, Complex, got)

	assert.Equal(t, Simple, Classify("thanks"))
}
