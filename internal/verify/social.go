package verify

import (
	"net/url"
	"regexp"
	"strings"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"

	"github.com/google/uuid"
)

type PlatformPolicy struct {
	Hosts        []string `mapstructure:"hosts"`
	PathPrefixes []string `mapstructure:"pathPrefixes"`
}

type SocialConfig struct {
	BrandTag  string                    `mapstructure:"brandTag"`
	Platforms map[string]PlatformPolicy `mapstructure:"platforms"`
}

func DefaultSocialConfig() SocialConfig {
	return SocialConfig{
		BrandTag: "missionrun",
		Platforms: map[string]PlatformPolicy{
			"instagram": {
				Hosts:        []string{"www.instagram.com"},
				PathPrefixes: []string{"/reel/"},
			},
			"tiktok": {
				Hosts: []string{"tiktok.com", "www.tiktok.com", "m.tiktok.com", "vm.tiktok.com"},
			},
		},
	}
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)

// SocialProofVerifier only enforces url and tag policy; post content is never fetched.
type SocialProofVerifier struct {
	cfg SocialConfig
}

func NewSocialProofVerifier(cfg SocialConfig) *SocialProofVerifier {
	return &SocialProofVerifier{cfg: cfg}
}

func (v *SocialProofVerifier) Verify(proof model.SocialProof, missionID uuid.UUID) error {
	policy, ok := v.cfg.Platforms[strings.ToLower(strings.TrimSpace(proof.Platform))]
	if !ok {
		return apperr.ErrUnsupportedPlatform
	}

	u, err := url.Parse(strings.TrimSpace(proof.PostURL))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Hostname() == "" {
		return apperr.ErrMalformedURL
	}

	if !hostAllowed(strings.ToLower(u.Hostname()), policy.Hosts) {
		return apperr.ErrBadHost
	}
	if len(policy.PathPrefixes) > 0 && !hasAnyPrefix(u.Path, policy.PathPrefixes) {
		return apperr.ErrBadHost.WithMessage("post url path is not a supported content type")
	}

	if missing := v.missingTags(proof, missionID); len(missing) > 0 {
		return apperr.ErrMissingTags.WithDetails(missing...)
	}
	return nil
}

func (v *SocialProofVerifier) missingTags(proof model.SocialProof, missionID uuid.UUID) []string {
	have := make(map[string]struct{}, len(proof.Tags))
	for _, t := range proof.Tags {
		have[normalizeTag(t)] = struct{}{}
	}
	for _, m := range hashtagPattern.FindAllStringSubmatch(proof.Caption, -1) {
		have[normalizeTag(m[1])] = struct{}{}
	}

	var missing []string
	for _, req := range []string{normalizeTag(v.cfg.BrandTag), missionID.String()} {
		if req == "" {
			continue
		}
		if _, ok := have[req]; !ok {
			missing = append(missing, req)
		}
	}
	return missing
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}

func hostAllowed(host string, allowed []string) bool {
	for _, h := range allowed {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
