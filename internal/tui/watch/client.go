package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/vitrine/internal/api"
	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/surface"
)

// --- Message types ---

type noticeMsg events.Notice

type healthMsg api.HealthzResponse

type surfacesMsg []surface.Record

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToNotices streams /events into ch until the connection drops.
func subscribeToNotices(apiURL, apiKey string, ch chan<- events.Notice) tea.Cmd {
	return func() tea.Msg {
		req, err := newRequest(apiURL+"/events", apiKey)
		if err != nil {
			return errMsg(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("events: %s", resp.Status))
		}

		readSSE(bufio.NewScanner(resp.Body), ch)
		return sseDisconnectedMsg{}
	}
}

// readSSE parses SSE frames until the scanner ends.
func readSSE(sc *bufio.Scanner, ch chan<- events.Notice) {
	var current events.Notice
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if len(current.Data) > 0 {
				if current.At.IsZero() {
					current.At = time.Now()
				}
				ch <- current
			}
			current = events.Notice{}
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				current.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			current.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			current.Data = json.RawMessage(line[6:])
		}
	}
}

// receiveNextNotice waits for the next notice from the channel.
func receiveNextNotice(ch <-chan events.Notice) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-ch)
	}
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Msg {
	var h healthMsg
	if err := getJSON(apiURL+"/healthz", apiKey, &h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchSurfaces queries the /surfaces endpoint.
func fetchSurfaces(apiURL, apiKey string) tea.Msg {
	var resp api.SurfacesResponse
	if err := getJSON(apiURL+"/surfaces", apiKey, &resp); err != nil {
		return errMsg(err)
	}
	return surfacesMsg(resp.Surfaces)
}

func getJSON(url, apiKey string, v any) error {
	req, err := newRequest(url, apiKey)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func newRequest(url, apiKey string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}
