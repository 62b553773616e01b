package verify

import (
	"testing"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocialProofVerifier_Verify(t *testing.T) {
	v := NewSocialProofVerifier(DefaultSocialConfig())
	missionTag := testMissionID.String()

	tests := []struct {
		name          string
		proof         model.SocialProof
		expectedError error
	}{
		{
			name:  "Instagram reel with tags",
			proof: model.SocialProof{Platform: "instagram", PostURL: "https://www.instagram.com/reel/Cx1/", Tags: []string{"#MissionRun", missionTag}},
		},
		{
			name:  "TikTok with tags in caption",
			proof: model.SocialProof{Platform: "TikTok", PostURL: "https://vm.tiktok.com/ZM123/", Caption: "done! #missionrun #" + missionTag},
		},
		{
			name:          "Instagram photo post is not short-form video",
			proof:         model.SocialProof{Platform: "instagram", PostURL: "https://www.instagram.com/p/abc/", Tags: []string{"missionrun", missionTag}},
			expectedError: apperr.ErrBadHost,
		},
		{
			name:          "Wrong host",
			proof:         model.SocialProof{Platform: "tiktok", PostURL: "https://tiktok.example.com/v/1", Tags: []string{"missionrun", missionTag}},
			expectedError: apperr.ErrBadHost,
		},
		{
			name:          "Malformed url",
			proof:         model.SocialProof{Platform: "tiktok", PostURL: "://nope", Tags: []string{"missionrun", missionTag}},
			expectedError: apperr.ErrMalformedURL,
		},
		{
			name:          "Missing scheme",
			proof:         model.SocialProof{Platform: "tiktok", PostURL: "www.tiktok.com/@u/video/1"},
			expectedError: apperr.ErrMalformedURL,
		},
		{
			name:          "Unknown platform",
			proof:         model.SocialProof{Platform: "myspace", PostURL: "https://myspace.com/x"},
			expectedError: apperr.ErrUnsupportedPlatform,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.proof, testMissionID)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSocialProofVerifier_NamesMissingTags(t *testing.T) {
	v := NewSocialProofVerifier(DefaultSocialConfig())

	err := v.Verify(model.SocialProof{
		Platform: "tiktok",
		PostURL:  "https://www.tiktok.com/@someone/video/123",
		Tags:     []string{"travel"},
	}, testMissionID)

	require.ErrorIs(t, err, apperr.ErrMissingTags)
	assert.Equal(t, []string{"missionrun", testMissionID.String()}, apperr.From(err).Details)
}
