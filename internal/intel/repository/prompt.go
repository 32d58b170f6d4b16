package repository

import (
	"fmt"
	"strings"

	"competitive-intel-agent/internal/entity"
)

// BuildCompanyProfilePrompt asks for a company description, industry, and
// a welcome message for the dashboard.
func BuildCompanyProfilePrompt(companyName string) string {
	return fmt.Sprintf(`Analyze the company named %s.
Provide the following information in JSON format:
1. A concise yet informative description (2-3 sentences) of what the company does, including its primary products/services and target audience.
2. The main industry or sector it operates within.
3. A friendly, professional welcome message (1-2 sentences) tailored for a user from this company who is about to use a competitive intelligence platform. Optionally include a simple, lighthearted pun related to the company's name or industry.

IMPORTANT: Output ONLY a single valid JSON object with this exact structure:
{
  "description": "...",
  "industry": "...",
  "welcome_message": "..."
}`, companyName)
}

// BuildIdentifyCompetitorsPrompt asks for up to max direct competitors.
// strict selects the tightened retry wording used after a parse failure.
func BuildIdentifyCompetitorsPrompt(companyName, description, industry string, max int, strict bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Based on the following information about the company %s:
- Description: %s
- Industry: %s

Identify up to %d of the most relevant direct competitors for this company.
For each competitor, provide:
1. The company name.
2. A brief description (1-2 sentences) of their main focus.
3. 2-3 key strengths relative to the target company or market.
4. 2-3 key weaknesses relative to the target company or market.
Prioritize competitors actively making moves in the market or directly competing with %s's core offerings.

`, companyName, description, industry, max, companyName)

	b.WriteString(`IMPORTANT: Output ONLY a single valid JSON object with this exact structure:
{
  "competitors": [
    {
      "name": "Competitor 1",
      "description": "...",
      "strengths": ["...", "..."],
      "weaknesses": ["...", "..."]
    }
  ]
}`)

	if strict {
		b.WriteString(`

Your previous answer was not valid JSON. Respond with the JSON object ONLY:
no markdown code fences, no commentary, no trailing commas, all property
names and string values in double quotes.`)
	}
	return b.String()
}

// BuildInsightsPrompt synthesizes strategic insights from competitor
// profiles and collected news.
func BuildInsightsPrompt(companyName string, competitors []entity.Competitor, news []entity.NewsArticle) string {
	var comp strings.Builder
	for _, c := range competitors {
		fmt.Fprintf(&comp, "- %s: %s\n  Strengths: %s\n  Weaknesses: %s\n",
			c.Name, c.Description, strings.Join(c.Strengths, "; "), strings.Join(c.Weaknesses, "; "))
	}

	var newsCtx strings.Builder
	for _, n := range news {
		fmt.Fprintf(&newsCtx, "HEADLINE: %s (%s)\nCONTENT: %s\n\n", n.Title, n.Source, firstNonEmpty(n.Content, n.Summary))
	}
	if newsCtx.Len() == 0 {
		newsCtx.WriteString("No specific recent news available.\n")
	}

	return fmt.Sprintf(`As a competitive intelligence analyst, synthesize the provided information about %s, its competitors, and recent news to generate 5-10 strategic insights.
These insights should highlight competitive opportunities, threats, or significant market trends relevant to %s.

COMPANY: %s

COMPETITORS:
%s
NEWS DATA:
%s
Instructions:
- Each insight must be directly supported by the provided competitor information and/or news data.
- Classify each insight's "category" as one of: market, competitor, product, strategy, other.
- Grade each insight's "severity" as low, medium, or high based on urgency for %s.
- List "related_competitors" using the competitor names exactly as provided.
- If news data is limited, focus on competitor strengths/weaknesses and general industry trends.

IMPORTANT: Output ONLY a single valid JSON object with this exact structure:
{
  "insights": [
    {
      "title": "...",
      "description": "...",
      "category": "market|competitor|product|strategy|other",
      "severity": "low|medium|high",
      "related_competitors": ["...", "..."]
    }
  ]
}`, companyName, companyName, companyName, comp.String(), newsCtx.String(), companyName)
}

// BuildDeepResearchPrompt requests the long-form competitor report. The
// section list mirrors the downloadable report structure.
func BuildDeepResearchPrompt(competitorName, competitorDescription, companyName string) string {
	desc := competitorDescription
	if desc == "" {
		desc = "No initial description provided."
	}
	contextLine := ""
	framing := ""
	implications := ""
	if companyName != "" {
		contextLine = fmt.Sprintf("\n- Analysis Context: this report is generated for %s, focusing on their competitive positioning against %s.", companyName, competitorName)
		framing = fmt.Sprintf("\n- Continuously frame findings through the lens of competition with %s.", companyName)
		implications = fmt.Sprintf(`
2. Strategic Implications for %s:
   - Competitive threat level, key differentiators, exploitable vulnerabilities of %s, and opportunities for %s.
`, companyName, competitorName, companyName)
	}

	return fmt.Sprintf(`You are a senior competitive intelligence analyst executing a deep-dive research assignment.

Task: create an exhaustive, data-driven competitive analysis report for %s.

Initial Context:
- Competitor under review: %s
- Known description: "%s"%s
- Do not include a date in the report.

Attribute every significant claim to its source using inline Markdown links or parenthetical source notes.

Report structure (use Markdown headings, "#" for the title, "##" for sections):

1. Executive Summary: market position, core strategy, key strengths/weaknesses, recent momentum, overall threat level.
%s%d. Company Overview: mission, business model, history and milestones, scale, culture and reputation.
%d. Products, Services & Technology: portfolio, discernible technology stack, innovation, pricing.
%d. Market Position & Go-to-Market: target market, share and positioning, marketing and sales strategy, partnerships.
%d. Financials & Funding: revenue and growth, funding history, M&A activity (when available).
%d. SWOT Analysis.
%d. Recent Developments (last 6-12 months) and their implications.
%d. Leadership & Organization.
%d. Future Outlook & Strategic Direction.

Final output guidelines:
- Professional, objective, analytical tone.
- Well-formatted Markdown only, no surrounding commentary.%s`,
		competitorName, competitorName, desc, contextLine,
		implications, sectionStart(companyName), sectionStart(companyName)+1,
		sectionStart(companyName)+2, sectionStart(companyName)+3, sectionStart(companyName)+4,
		sectionStart(companyName)+5, sectionStart(companyName)+6, sectionStart(companyName)+7,
		framing)
}

// BuildChatAnswerPrompt instructs the model to answer only from the
// retrieved context and to say so when the context is insufficient.
func BuildChatAnswerPrompt(query string, contextBlocks []string) string {
	contextText := strings.Join(contextBlocks, "\n\n")
	if len(contextBlocks) == 0 {
		contextText = "No specific data available for this company yet. The analysis may still be running."
	}

	return fmt.Sprintf(`You are an AI assistant analyzing competitive intelligence data. Answer the following question based only on the provided context. If the context does not contain the answer, state that clearly. Do not make up information.

Context:
%s

Question: %s

Answer:`, contextText, query)
}

func sectionStart(companyName string) int {
	if companyName != "" {
		return 3
	}
	return 2
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
