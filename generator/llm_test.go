package generator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"project_plan_chat/plan"
)

type capturedRequest struct {
	path  string
	query string
	body  []byte
}

// fakeProvider serves each response in parts, flushing between them, and
// reports the request it saw.
func fakeProvider(t *testing.T, status int, contentType string, parts ...string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- capturedRequest{path: r.URL.Path, query: r.URL.RawQuery, body: body}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		flusher, _ := w.(http.Flusher)
		for _, p := range parts {
			_, _ = io.WriteString(w, p)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func openAIChunk(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":%q},"finish_reason":null}]}`+"\n\n", content)
}

func geminiSnapshot(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}],"role":"model"}}]}`, text)
}

func TestProviderForModel(t *testing.T) {
	t.Parallel()

	cases := map[string]Provider{
		"gemini-2.5-flash":        ProviderGemini,
		"gpt-4o-mini":             ProviderOpenAI,
		"llama-3.3-70b-versatile": ProviderGroq,
		"mixtral-8x7b-32768":      ProviderGroq,
		"gemma2-9b-it":            ProviderGroq,
		"claude-sonnet-4-5":       ProviderAnthropic,
		"mock-planner":            ProviderMock,
		"something-else":          ProviderGemini,
	}
	for model, want := range cases {
		require.Equal(t, want, ProviderForModel(model), model)
	}
}

func TestNewLLM_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewLLM(LLMSettings{Provider: ProviderOpenAI})
	require.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewLLM(LLMSettings{Provider: "cohere", APIKey: "k"})
	require.ErrorIs(t, err, ErrUnknownProvider)

	c, err := NewLLM(LLMSettings{Provider: ProviderMock})
	require.NoError(t, err)
	require.Equal(t, []string{"mock-planner"}, c.ListModels())

	_, err = ParseProvider("Groq ")
	require.NoError(t, err)
	_, err = ParseProvider("bard")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestModelCatalogue_DefaultFirst(t *testing.T) {
	t.Parallel()

	got := modelCatalogue(LLMSettings{Provider: ProviderOpenAI, DefaultModel: "gpt-4o"})
	require.Equal(t, []string{"gpt-4o", "gpt-5-nano", "gpt-5-mini", "gpt-4o-mini"}, got)
}

func TestOpenAILLM_Stream(t *testing.T) {
	t.Parallel()

	srv, seen := fakeProvider(t, http.StatusOK, "text/event-stream",
		openAIChunk("Hel"), openAIChunk("lo "), openAIChunk(""), openAIChunk("world"), "data: [DONE]\n\n")
	llm, err := NewLLM(LLMSettings{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	var deltas []string
	text, err := llm.StreamMessage(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-4o", func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	require.Equal(t, "Hello world", text)
	require.Equal(t, []string{"Hel", "lo ", "world"}, deltas)

	req := <-seen
	require.True(t, strings.HasSuffix(req.path, "/chat/completions"), req.path)
	require.Equal(t, "gpt-4o", gjson.GetBytes(req.body, "model").String())
	require.True(t, gjson.GetBytes(req.body, "stream").Bool())
}

func TestOpenAILLM_EmptyStream(t *testing.T) {
	t.Parallel()

	srv, _ := fakeProvider(t, http.StatusOK, "text/event-stream", "data: [DONE]\n\n")
	llm, err := NewLLM(LLMSettings{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = llm.StreamMessage(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAILLM_Unauthorized(t *testing.T) {
	t.Parallel()

	srv, _ := fakeProvider(t, http.StatusUnauthorized, "application/json",
		`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`)
	llm, err := NewLLM(LLMSettings{Provider: ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = llm.SendMessage(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-4o")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGroq_MergesSystemAndLowersTemperatureForPlans(t *testing.T) {
	t.Parallel()

	srv, seen := fakeProvider(t, http.StatusOK, "text/event-stream", openAIChunk("ok"), "data: [DONE]\n\n")
	llm, err := NewLLM(LLMSettings{Provider: ProviderGroq, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	msgs := BuildChatPrompt(nil, "plan it", plan.Decision{Requested: true}, "a bakery").Messages()
	_, err = llm.StreamMessage(context.Background(), msgs, "llama-3.3-70b-versatile", nil)
	require.NoError(t, err)

	req := <-seen
	require.Equal(t, int64(1), gjson.GetBytes(req.body, "messages.#").Int())
	require.Equal(t, "user", gjson.GetBytes(req.body, "messages.0.role").String())
	content := gjson.GetBytes(req.body, "messages.0.content").String()
	require.True(t, strings.HasPrefix(content, planSystemPrompt), content)
	require.Contains(t, content, `Create a project plan for: "a bakery"`)
	require.InDelta(t, 0.1, gjson.GetBytes(req.body, "temperature").Float(), 1e-9)
}

func TestGroq_ConversationTemperature(t *testing.T) {
	t.Parallel()

	srv, seen := fakeProvider(t, http.StatusOK, "text/event-stream", openAIChunk("ok"), "data: [DONE]\n\n")
	llm, err := NewLLM(LLMSettings{Provider: ProviderGroq, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	msgs := BuildChatPrompt(nil, "hello", plan.Decision{}, "").Messages()
	_, err = llm.StreamMessage(context.Background(), msgs, "llama-3.1-8b-instant", nil)
	require.NoError(t, err)
	require.InDelta(t, 0.7, gjson.GetBytes((<-seen).body, "temperature").Float(), 1e-9)
}

func TestMergeSystemIntoFirstUser(t *testing.T) {
	t.Parallel()

	got := mergeSystemIntoFirstUser([]Message{
		{Role: RoleSystem, Content: "A"},
		{Role: RoleSystem, Content: "B"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	require.Equal(t, []Message{{Role: RoleUser, Content: "A\n\nB\n\nhi"}, {Role: RoleAssistant, Content: "hello"}}, got)

	got = mergeSystemIntoFirstUser([]Message{{Role: RoleSystem, Content: "A"}, {Role: RoleAssistant, Content: "x"}})
	require.Equal(t, []Message{{Role: RoleAssistant, Content: "x"}}, got)
}

func TestGeminiLLM_StreamReconcilesSnapshots(t *testing.T) {
	t.Parallel()

	srv, seen := fakeProvider(t, http.StatusOK, "application/json",
		"["+geminiSnapshot("Hi"),
		",\r\n"+geminiSnapshot("Hi there")[:20],
		geminiSnapshot("Hi there")[20:],
		",\r\n"+geminiSnapshot("Hi there!")+"]",
	)
	llm, err := NewLLM(LLMSettings{Provider: ProviderGemini, APIKey: "secret", BaseURL: srv.URL})
	require.NoError(t, err)

	var got strings.Builder
	text, err := llm.StreamMessage(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	}, "gemini-2.5-flash", func(d string) { got.WriteString(d) })
	require.NoError(t, err)
	require.Equal(t, "Hi there!", text)
	require.Equal(t, "Hi there!", got.String())

	req := <-seen
	require.Equal(t, "/v1beta/models/gemini-2.5-flash:streamGenerateContent", req.path)
	require.Equal(t, "key=secret", req.query)
	require.Equal(t, "be brief", gjson.GetBytes(req.body, "systemInstruction.parts.0.text").String())
	require.Equal(t, "user", gjson.GetBytes(req.body, "contents.0.role").String())
}

func TestGeminiLLM_SimulatedStream(t *testing.T) {
	t.Parallel()

	answer := "Here is a longer answer — with a dash and more words."
	srv, seen := fakeProvider(t, http.StatusOK, "application/json", geminiSnapshot(answer))
	llm, err := NewLLM(LLMSettings{Provider: ProviderGemini, APIKey: "k", BaseURL: srv.URL, SimulateStream: true})
	require.NoError(t, err)

	var chunks []string
	text, err := llm.StreamMessage(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", func(d string) {
		chunks = append(chunks, d)
	})
	require.NoError(t, err)
	require.Equal(t, answer, text)
	require.Equal(t, answer, strings.Join(chunks, ""))
	for _, c := range chunks[:len(chunks)-1] {
		require.GreaterOrEqual(t, len(c), simulatedChunkBytes)
	}
	require.True(t, strings.HasSuffix((<-seen).path, ":generateContent"))
}

func TestGeminiLLM_StatusErrors(t *testing.T) {
	t.Parallel()

	cases := map[int]error{
		http.StatusForbidden:          ErrUnauthorized,
		http.StatusTooManyRequests:    ErrRateLimited,
		http.StatusServiceUnavailable: ErrUnavailable,
	}
	for status, want := range cases {
		srv, _ := fakeProvider(t, status, "application/json", `{"error":{"message":"nope"}}`)
		llm, err := NewLLM(LLMSettings{Provider: ProviderGemini, APIKey: "k", BaseURL: srv.URL})
		require.NoError(t, err)
		_, err = llm.StreamMessage(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", nil)
		require.ErrorIs(t, err, want)
	}
}

func TestGeminiLLM_NoTextIsEmptyResponse(t *testing.T) {
	t.Parallel()

	srv, _ := fakeProvider(t, http.StatusOK, "application/json", `[{"candidates":[{"finishReason":"SAFETY"}]}]`)
	llm, err := NewLLM(LLMSettings{Provider: ProviderGemini, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = llm.StreamMessage(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "", nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicLLM_Stream(t *testing.T) {
	t.Parallel()

	event := func(name, data string) string { return "event: " + name + "\ndata: " + data + "\n\n" }
	srv, seen := fakeProvider(t, http.StatusOK, "text/event-stream",
		event("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-5","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}}`),
		event("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		event("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`),
		event("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`),
		event("content_block_stop", `{"type":"content_block_stop","index":0}`),
		event("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`),
		event("message_stop", `{"type":"message_stop"}`),
	)
	llm, err := NewLLM(LLMSettings{Provider: ProviderAnthropic, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	var deltas []string
	text, err := llm.StreamMessage(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
	}, "claude-sonnet-4-5", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	require.Equal(t, "Hello there", text)
	require.Equal(t, []string{"Hello", " there"}, deltas)

	req := <-seen
	require.Equal(t, "be kind", gjson.GetBytes(req.body, "system.0.text").String())
	require.Equal(t, int64(1), gjson.GetBytes(req.body, "messages.#").Int())
}
