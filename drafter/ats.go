package drafter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/use-agent/jobscout/models"
)

// atsResult is one compatibility analysis of a job against the profile.
// The JSON shape is the one the model is asked to return.
type atsResult struct {
	Score           int      `json:"atsScore"`
	MatchedSkills   []string `json:"matchedSkills"`
	MissingSkills   []string `json:"missingSkills"`
	Recommendations []string `json:"recommendations"`

	source string
}

var defaultRecommendations = []string{
	"Tailor resume to highlight relevant experience",
	"Include specific technical skills from job description",
	"Quantify achievements with metrics",
}

// analyse asks the model for an ATS score and falls back to the keyword
// score when no provider is configured, every attempt failed, or the reply
// holds no usable JSON.
func (d *Drafter) analyse(ctx context.Context, rec *models.JobRecord) atsResult {
	kw := keywordATS(d.profile, rec)
	fallback, _ := json.Marshal(kw)

	text, usedFallback := d.gen.Generate(ctx, atsPrompt(d.profile, rec), string(fallback))
	if usedFallback {
		return kw
	}
	res, ok := parseATS(text)
	if !ok {
		slog.Warn("ATS reply held no JSON, using keyword score", "job_id", rec.JobID)
		return kw
	}
	return res
}

// parseATS extracts the outermost JSON object from a model reply.
func parseATS(text string) (atsResult, bool) {
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return atsResult{}, false
	}
	var res atsResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &res); err != nil {
		return atsResult{}, false
	}
	if res.Score == 0 {
		res.Score = 75
	}
	res.Score = max(0, min(100, res.Score))
	res.MatchedSkills = cleanList(res.MatchedSkills)
	res.MissingSkills = cleanList(res.MissingSkills)
	res.Recommendations = cleanList(res.Recommendations)
	res.source = "model"
	return res, true
}

// keywordATS scores 60 plus 5 per keyword found in both the job and the
// profile, capped at 95. Keywords only the job mentions are missing skills.
func keywordATS(p *Profile, rec *models.JobRecord) atsResult {
	job := strings.ToLower(rec.Title + " " + rec.Description + " " + strings.Join(rec.Requirements, " "))
	cv := profileText(p)

	seen := make(map[string]bool)
	matched, missing := []string{}, []string{}
	for _, kw := range append(append([]string(nil), securityKeywords...), p.Skills...) {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		switch inJob := strings.Contains(job, kw); {
		case inJob && strings.Contains(cv, kw):
			matched = append(matched, kw)
		case inJob:
			missing = append(missing, kw)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return atsResult{
		Score:           min(95, 60+5*len(matched)),
		MatchedSkills:   matched,
		MissingSkills:   missing,
		Recommendations: append([]string(nil), defaultRecommendations...),
		source:          "keywords",
	}
}

func profileText(p *Profile) string {
	return strings.ToLower(p.Summary + " " + p.Headline + " " + strings.Join(p.Experience, " ") + " " + strings.Join(p.Skills, " "))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func atsPrompt(p *Profile, rec *models.JobRecord) string {
	return fmt.Sprintf(`You are an ATS (Applicant Tracking System) analyzer. Analyze the compatibility between this CV and job posting.

JOB TITLE: %s
COMPANY: %s
LOCATION: %s
DESCRIPTION: %s

CV:
%s
Skills: %s
Experience:
%s

Respond with JSON only:
{
  "atsScore": 85,
  "matchedSkills": ["skill1", "skill2"],
  "missingSkills": ["skill3"],
  "recommendations": ["rec1", "rec2"]
}`,
		rec.Title, rec.Company, rec.Location, truncate(rec.Description, maxPromptDescription),
		p.Summary, strings.Join(p.Skills, ", "), bullets(p.Experience))
}
