package drafter

import (
	"fmt"
	"strings"

	"github.com/use-agent/jobscout/models"
)

// securityKeywords are matched against descriptions when extracting skills.
var securityKeywords = []string{
	"security", "cyber", "network", "threat", "analysis", "monitoring",
	"incident", "soc", "siem", "firewall", "penetration", "vulnerability",
	"splunk", "python", "linux", "cloud", "iso 27001", "nist",
}

const maxPromptDescription = 3000

func resumePrompt(p *Profile, rec *models.JobRecord) string {
	return fmt.Sprintf(`You are an expert CV writer for UK cyber security roles. Tailor the candidate's CV to this job.

JOB
Title: %s
Company: %s
Location: %s
Description: %s

CANDIDATE
Name: %s
Headline: %s
Summary: %s
Skills: %s
Experience:
%s

Rules:
- Use keywords from the job description where the candidate genuinely has them.
- Plain text, no markdown, at most 500 words.
- Return the CV only.`,
		rec.Title, rec.Company, rec.Location, truncate(rec.Description, maxPromptDescription),
		p.Name, p.Headline, p.Summary, strings.Join(p.Skills, ", "), bullets(p.Experience))
}

func emailPrompt(p *Profile, rec *models.JobRecord) string {
	return fmt.Sprintf(`Write a short cover email for a job application.

Job: %s at %s (%s)
Matched skills: %s
Candidate: %s, %s

Rules:
- Professional and specific, under 200 words.
- Plain text body only, no subject line, no placeholders.`,
		rec.Title, rec.Company, rec.Location, strings.Join(rec.AIGenerated.Skills, ", "),
		p.Name, p.Headline)
}

func resumeTemplate(p *Profile, rec *models.JobRecord) string {
	return fmt.Sprintf(`%s
%s | %s

PROFILE
%s

KEY SKILLS
%s

EXPERIENCE
%s

Target role: %s at %s`,
		p.Name, p.Headline, p.Email, p.Summary, strings.Join(p.Skills, ", "),
		bullets(p.Experience), rec.Title, rec.Company)
}

func emailSubject(rec *models.JobRecord) string {
	return fmt.Sprintf("Application for %s position at %s", rec.Title, rec.Company)
}

func emailTemplate(p *Profile, rec *models.JobRecord) string {
	skills := "cyber security"
	if len(rec.AIGenerated.Skills) > 0 {
		skills = strings.Join(rec.AIGenerated.Skills, ", ")
	}
	return fmt.Sprintf(`Dear Hiring Manager,

I am writing to apply for the %s role at %s. My background in %s matches the requirements of the position, and I would welcome the chance to contribute to your team.

I have attached my CV and would be glad to discuss my application further.

Kind regards,
%s
%s`, rec.Title, rec.Company, skills, p.Name, p.Email)
}

func bullets(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
