package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/advisim-lab/mnemosyne/pkg/domain/model"
	"github.com/advisim-lab/mnemosyne/pkg/domain/types"
)

func TestCase_Validate(t *testing.T) {
	valid := func() *model.Case {
		return &model.Case{
			ID:        model.NewCaseID(),
			TaskType:  "retirement_planning",
			Situation: "client aged 55 asking about drawdown options",
			Guidance:  "recommended phased drawdown with annual review",
		}
	}

	t.Run("valid case", func(t *testing.T) {
		gt.NoError(t, valid().Validate())
	})

	t.Run("missing ID", func(t *testing.T) {
		c := valid()
		c.ID = ""
		gt.Error(t, c.Validate())
	})

	t.Run("missing situation", func(t *testing.T) {
		c := valid()
		c.Situation = ""
		gt.Error(t, c.Validate())
	})

	t.Run("quality out of range", func(t *testing.T) {
		c := valid()
		q := 1.5
		c.Meta.ConversationalQuality = &q
		gt.Error(t, c.Validate())
	})

	t.Run("quality absent is fine", func(t *testing.T) {
		gt.NoError(t, valid().Validate())
	})
}

func TestCase_Clone(t *testing.T) {
	q := 0.8
	orig := &model.Case{
		ID:        model.NewCaseID(),
		TaskType:  "protection",
		Situation: "young family without life cover",
		Outcome:   map[string]any{"accepted": true},
		Embedding: []float32{0.4, 0.5},
		Meta: model.CaseMeta{
			ConversationalQuality: &q,
			DialogueTechniques: model.DialogueTechniques{
				PhasesCovered: []types.ConsultationPhase{types.PhaseFactFinding},
			},
			Extra: map[string]any{"advisor": "a-9"},
		},
		Seq: 3,
	}

	cp := orig.Clone()
	gt.Value(t, cp.ID).Equal(orig.ID)

	*cp.Meta.ConversationalQuality = 0.1
	cp.Meta.DialogueTechniques.PhasesCovered[0] = types.PhaseClosing
	cp.Meta.Extra["advisor"] = "a-1"
	cp.Outcome["accepted"] = false
	cp.Embedding[0] = 9

	gt.Value(t, *orig.Meta.ConversationalQuality).Equal(0.8)
	gt.Value(t, orig.Meta.DialogueTechniques.PhasesCovered[0]).Equal(types.PhaseFactFinding)
	gt.Value(t, orig.Meta.Extra["advisor"]).Equal("a-9")
	gt.Value(t, orig.Outcome["accepted"]).Equal(true)
	gt.Value(t, orig.Embedding[0]).Equal(float32(0.4))
}

func TestDialogueTechniques_Covers(t *testing.T) {
	d := model.DialogueTechniques{
		PhasesCovered: []types.ConsultationPhase{
			types.PhaseIntroduction,
			types.PhaseFactFinding,
		},
	}

	gt.B(t, d.Covers(types.PhaseFactFinding)).True()
	gt.B(t, d.Covers(types.PhaseClosing)).False()
	gt.B(t, model.DialogueTechniques{}.Covers(types.PhaseClosing)).False()
}

func TestRule_Validate(t *testing.T) {
	valid := func() *model.Rule {
		return &model.Rule{
			ID:         model.NewRuleID(),
			Principle:  "always confirm attitude to risk before recommending equity exposure",
			Domain:     "investment",
			Confidence: 0.9,
		}
	}

	t.Run("valid rule", func(t *testing.T) {
		gt.NoError(t, valid().Validate())
	})

	t.Run("missing principle", func(t *testing.T) {
		r := valid()
		r.Principle = ""
		gt.Error(t, r.Validate())
	})

	t.Run("confidence out of range", func(t *testing.T) {
		r := valid()
		r.Confidence = -0.2
		gt.Error(t, r.Validate())

		r = valid()
		r.Confidence = 1.1
		gt.Error(t, r.Validate())
	})
}

func TestRetrievalWeights_Validate(t *testing.T) {
	gt.NoError(t, model.DefaultRetrievalWeights().Validate())
	gt.NoError(t, model.RetrievalWeights{}.Validate())
	gt.NoError(t, model.RetrievalWeights{Recency: 0.5, Importance: 0.3, Relevance: 0.2}.Validate())
	gt.Error(t, model.RetrievalWeights{Recency: -1, Importance: 1, Relevance: 1}.Validate())
}
