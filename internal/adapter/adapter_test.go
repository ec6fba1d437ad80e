package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formalci/formalci/internal/model"
)

var allConclusions = []model.CheckConclusion{
	model.ConclusionSuccess,
	model.ConclusionFailure,
	model.ConclusionNeutral,
	model.ConclusionCancelled,
	model.ConclusionSkipped,
	model.ConclusionTimedOut,
	model.ConclusionActionRequired,
}

func TestGitHubStatusMappingIsTotal(t *testing.T) {
	for _, c := range allConclusions {
		assert.NotEmpty(t, githubStatusMapping.Map(c), c)
	}
}

func TestGitLabStatusMappingIsTotal(t *testing.T) {
	for _, c := range allConclusions {
		assert.NotEmpty(t, gitlabStatusMapping.Map(c), c)
	}
}

func TestBitbucketStatusMappingIsTotal(t *testing.T) {
	for _, c := range allConclusions {
		assert.NotEmpty(t, bitbucketStatusMapping.Map(c), c)
	}
}

func TestCodebergStatusMappingIsTotal(t *testing.T) {
	for _, c := range allConclusions {
		assert.NotEmpty(t, codebergStatusMapping.Map(c), c)
	}
}

func TestCollapseEquivalenceClasses(t *testing.T) {
	assert.Equal(t, model.ConclusionSuccess, model.ConclusionNeutral.Collapsed())
	assert.Equal(t, model.ConclusionSuccess, model.ConclusionSkipped.Collapsed())
	assert.Equal(t, model.ConclusionFailure, model.ConclusionTimedOut.Collapsed())
	assert.Equal(t, model.ConclusionFailure, model.ConclusionActionRequired.Collapsed())
	assert.Equal(t, model.ConclusionSuccess, model.ConclusionSuccess.Collapsed())
}
