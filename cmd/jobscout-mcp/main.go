package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/jobscout/models"
)

// client talks to the jobscout review API.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

// envelope is the error part every API response shares.
type envelope struct {
	Success bool                `json:"success"`
	Error   *models.ErrorDetail `json:"error"`
}

func main() {
	apiURL := os.Getenv("JOBSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("JOBSCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "JOBSCOUT_API_KEY is required")
		os.Exit(1)
	}
	c := &client{
		http:   &http.Client{Timeout: 60 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}

	s := server.NewMCPServer(
		"jobscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	listJobsTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List scraped cyber security job records, newest first. Filter by lifecycle status, platform or a free-text search over title, company and location."),
		mcp.WithString("status",
			mcp.Description("Lifecycle status filter, e.g. 'ready_for_review', 'scraped', 'expired', or 'all'"),
		),
		mcp.WithString("platform",
			mcp.Description("Source platform filter, e.g. 'Reed', 'Indeed', 'LinkedIn'"),
		),
		mcp.WithString("search",
			mcp.Description("Case-insensitive text matched against title, company and location"),
		),
		mcp.WithNumber("page",
			mcp.Description("1-based page number (default 1)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Page size, 1-100 (default 20)"),
		),
	)
	s.AddTool(listJobsTool, handleListJobs(c))

	getJobTool := mcp.NewTool("get_job",
		mcp.WithDescription("Fetch one job record with its drafted resume and outreach email. Marks the record as viewed."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job_id of the record"),
		),
	)
	s.AddTool(getJobTool, handleGetJob(c))

	statsTool := mcp.NewTool("job_stats",
		mcp.WithDescription("Return record counts in total, by lifecycle status and by source platform."),
	)
	s.AddTool(statsTool, handleJobStats(c))

	updateStatusTool := mcp.NewTool("update_job_status",
		mcp.WithDescription("Record a review decision on a job. Only transitions allowed by the record lifecycle are accepted."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job_id of the record"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Target status"),
			mcp.Enum("user_approved", "user_rejected", "applying", "applied", "ready_for_review"),
		),
		mcp.WithString("notes",
			mcp.Description("Optional reviewer notes"),
		),
		mcp.WithNumber("rating",
			mcp.Description("Optional reviewer rating from 1 to 5"),
		),
	)
	s.AddTool(updateStatusTool, handleUpdateStatus(c))

	prepareTool := mcp.NewTool("prepare_application",
		mcp.WithDescription("Draft the tailored CV and cover email for one job now, instead of waiting for the next drafting batch."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job_id of the record"),
		),
	)
	s.AddTool(prepareTool, handlePrepare(c))

	applyTool := mcp.NewTool("apply_to_job",
		mcp.WithDescription("Email the drafted application for a reviewed job. The job must be ready_for_review or user_approved."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job_id of the record"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recruiter email address"),
		),
	)
	s.AddTool(applyTool, handleApply(c))

	runCycleTool := mcp.NewTool("run_cycle",
		mcp.WithDescription("Start a scraping cycle across every enabled source in the background. Returns immediately; a cycle already in progress is reported, not queued."),
	)
	s.AddTool(runCycleTool, handleRunCycle(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func handleListJobs(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := url.Values{}
		for _, name := range []string{"status", "platform", "search"} {
			if v := request.GetString(name, ""); v != "" {
				q.Set(name, v)
			}
		}
		if page := request.GetInt("page", 0); page > 0 {
			q.Set("page", fmt.Sprint(page))
		}
		if limit := request.GetInt("limit", 0); limit > 0 {
			q.Set("limit", fmt.Sprint(limit))
		}

		var resp models.JobsResponse
		if res := c.call(ctx, http.MethodGet, "/api/v1/jobs?"+q.Encode(), nil, &resp); res != nil {
			return res, nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Page %d of %d (%d records)\n\n", resp.Pagination.Page, resp.Pagination.Pages, resp.Pagination.Total)
		for _, j := range resp.Jobs {
			fmt.Fprintf(&b, "- [%s] %s at %s (%s) via %s, priority %d\n  %s\n",
				j.Status, j.Title, j.Company, j.Location, j.Source.Platform, j.Quality.PriorityScore, j.JobID)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleGetJob(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		var resp models.JobResponse
		if res := c.call(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &resp); res != nil {
			return res, nil
		}
		return jsonResult(resp.Job)
	}
}

func handleJobStats(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.StatsResponse
		if res := c.call(ctx, http.MethodGet, "/api/v1/jobs/stats", nil, &resp); res != nil {
			return res, nil
		}
		return jsonResult(resp.Stats)
	}
}

func handleUpdateStatus(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}
		status, err := request.RequireString("status")
		if err != nil {
			return mcp.NewToolResultError("status is required"), nil
		}
		payload := models.UpdateStatusRequest{
			Status: status,
			Notes:  request.GetString("notes", ""),
			Rating: request.GetInt("rating", 0),
		}

		var resp models.JobResponse
		if res := c.call(ctx, http.MethodPatch, "/api/v1/jobs/"+url.PathEscape(id)+"/status", payload, &resp); res != nil {
			return res, nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s is now %s", resp.Job.JobID, resp.Job.Status)), nil
	}
}

func handlePrepare(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		var resp models.JobResponse
		if res := c.call(ctx, http.MethodPost, "/api/v1/applications/prepare/"+url.PathEscape(id), struct{}{}, &resp); res != nil {
			return res, nil
		}
		return jsonResult(resp.Job.AIGenerated)
	}
}

func handleApply(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}
		to, err := request.RequireString("to")
		if err != nil {
			return mcp.NewToolResultError("to is required"), nil
		}

		var resp models.JobResponse
		payload := models.ApplyRequest{To: to}
		if res := c.call(ctx, http.MethodPost, "/api/v1/applications/apply/"+url.PathEscape(id), payload, &resp); res != nil {
			return res, nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("application for %s sent to %s", resp.Job.JobID, to)), nil
	}
}

func handleRunCycle(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp struct {
			Started bool `json:"started"`
		}
		if res := c.call(ctx, http.MethodPost, "/api/v1/cycle", struct{}{}, &resp); res != nil {
			return res, nil
		}
		return mcp.NewToolResultText("scraping cycle started"), nil
	}
}

// call sends a request to the API and decodes the response into out. It
// returns a tool error result when anything fails, or nil on success.
func (c *client) call(ctx context.Context, method, path string, payload, out any) *mcp.CallToolResult {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err))
	}
	if resp.StatusCode >= 400 || env.Error != nil {
		msg := fmt.Sprintf("API returned %d", resp.StatusCode)
		if env.Error != nil {
			msg = fmt.Sprintf("[%s] %s", env.Error.Code, env.Error.Message)
		}
		return mcp.NewToolResultError(msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
