package oracle

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"duebot/internal/model"

	jsoniter "github.com/json-iterator/go"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Client implements Oracle on top of the OpenAI chat completions API.
type Client struct {
	client *openai.Client
	model  openai.ChatModel
	loc    *time.Location
	now    func() time.Time
}

var _ Oracle = (*Client)(nil)

// NewClient builds an OpenAI-backed oracle. Extracted dates and times are
// interpreted in loc. An empty chatModel falls back to GPT-4o mini.
func NewClient(apiKey, chatModel string, loc *time.Location) *Client {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	m := openai.ChatModel(chatModel)
	if chatModel == "" {
		m = openai.ChatModelGPT4oMini
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		client: &client,
		model:  m,
		loc:    loc,
		now:    time.Now,
	}
}

func prompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		panic(fmt.Sprintf("oracle: missing prompt %s: %v", name, err))
	}
	return string(data)
}

// complete runs one chat completion with the given system prompt and the
// conversation replayed in order.
func (c *Client) complete(ctx context.Context, system string, msgs []model.Message) (string, error) {
	params := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
	}
	for _, msg := range msgs {
		if msg.FromUser {
			params = append(params, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Text),
					},
				},
			})
		} else {
			params = append(params, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: openai.String(msg.Text),
					},
				},
			})
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    params,
		Temperature: openai.Float(0.0),
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion received", ErrContract)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// withClock appends the current time so the model can resolve relative
// expressions like "tomorrow" or "next friday".
func (c *Client) withClock(system string) string {
	now := c.now().In(c.loc)
	return system + "\n\nThe current time is " + now.Format("Monday, 2006-01-02 15:04") + "."
}

// decodePayload parses a JSON object out of a model reply, tolerating a
// markdown code fence around it.
func decodePayload(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if err := json.UnmarshalFromString(trimmed, v); err != nil {
		return fmt.Errorf("%w: unparseable payload %q: %v", ErrContract, raw, err)
	}
	return nil
}

func parseDate(value string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q: %v", ErrContract, value, err)
	}
	return &t, nil
}

func parseDateTime(value string, loc *time.Location) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{dateTimeLayout, "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: bad timestamp %q", ErrContract, value)
}

// candidateList renders deadlines for prompts that match against them.
func candidateList(candidates []model.Deadline) string {
	var sb strings.Builder
	sb.WriteString("\n\nStored deadlines:\n")
	for _, d := range candidates {
		fmt.Fprintf(&sb, "%d: %s (due %s)\n", d.ID, d.Description, d.DueDate.Format(dateLayout))
	}
	return sb.String()
}

// ClassifyIntent maps the conversation onto a (target, action) pair. Values
// outside the enums collapse to the none/none conversational fallback; this
// is the only place an off-contract reply is tolerated.
func (c *Client) ClassifyIntent(ctx context.Context, msgs []model.Message) (Intent, error) {
	raw, err := c.complete(ctx, prompt("intent"), msgs)
	if err != nil {
		return Intent{}, err
	}

	var payload struct {
		Action string `json:"action"`
		Target string `json:"target"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return Intent{}, err
	}

	intent := Intent{
		Action: Action(strings.ToLower(payload.Action)),
		Target: Target(strings.ToLower(payload.Target)),
	}
	switch intent.Action {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
	default:
		intent.Action = ActionNone
	}
	switch intent.Target {
	case TargetDeadline, TargetReminder:
	default:
		intent.Target = TargetNone
	}
	return intent, nil
}

func (c *Client) ExtractDeadlineCreation(ctx context.Context, msgs []model.Message) (DeadlineCreation, error) {
	raw, err := c.complete(ctx, c.withClock(prompt("deadline_create")), msgs)
	if err != nil {
		return DeadlineCreation{}, err
	}

	var payload struct {
		Description  string `json:"description"`
		DueDate      string `json:"due_date"`
		Confirmation bool   `json:"confirmation"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return DeadlineCreation{}, err
	}

	due, err := parseDate(payload.DueDate, c.loc)
	if err != nil {
		return DeadlineCreation{}, err
	}
	return DeadlineCreation{
		Description: strings.TrimSpace(payload.Description),
		DueDate:     due,
		Confirmed:   payload.Confirmation,
	}, nil
}

func (c *Client) ExtractFetchInfo(ctx context.Context, message string) (FetchInfo, error) {
	msgs := []model.Message{{Text: message, FromUser: true}}
	raw, err := c.complete(ctx, c.withClock(prompt("deadline_fetch")), msgs)
	if err != nil {
		return FetchInfo{}, err
	}

	var payload struct {
		Description string `json:"description"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return FetchInfo{}, err
	}

	start, err := parseDate(payload.StartDate, c.loc)
	if err != nil {
		return FetchInfo{}, err
	}
	end, err := parseDate(payload.EndDate, c.loc)
	if err != nil {
		return FetchInfo{}, err
	}
	return FetchInfo{
		Description: strings.TrimSpace(payload.Description),
		Start:       start,
		End:         end,
	}, nil
}

func (c *Client) FilterDeadlines(ctx context.Context, candidates []model.Deadline, description string) ([]uint, error) {
	system := prompt("deadline_filter") + candidateList(candidates)
	msgs := []model.Message{{Text: "Description to match: " + description, FromUser: true}}
	raw, err := c.complete(ctx, system, msgs)
	if err != nil {
		return nil, err
	}

	var payload struct {
		IDs []uint `json:"ids"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return nil, err
	}
	return onlyKnownIDs(payload.IDs, candidates), nil
}

func (c *Client) ExtractDeadlineReference(ctx context.Context, msgs []model.Message) (string, error) {
	raw, err := c.complete(ctx, prompt("deadline_reference"), msgs)
	if err != nil {
		return "", err
	}

	var payload struct {
		OldDeadlineDescription string `json:"old_deadline_description"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.OldDeadlineDescription), nil
}

func (c *Client) ExtractUpdateInfo(ctx context.Context, msgs []model.Message) (DeadlineUpdate, error) {
	raw, err := c.complete(ctx, c.withClock(prompt("deadline_update")), msgs)
	if err != nil {
		return DeadlineUpdate{}, err
	}

	var payload struct {
		NewDescription string `json:"new_description"`
		NewDueDate     string `json:"new_due_date"`
		Confirmation   bool   `json:"confirmation"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return DeadlineUpdate{}, err
	}

	due, err := parseDate(payload.NewDueDate, c.loc)
	if err != nil {
		return DeadlineUpdate{}, err
	}
	return DeadlineUpdate{
		NewDescription: strings.TrimSpace(payload.NewDescription),
		NewDueDate:     due,
		Confirmed:      payload.Confirmation,
	}, nil
}

func (c *Client) ExtractDeleteIDs(ctx context.Context, candidates []model.Deadline, msgs []model.Message) (Deletion, error) {
	system := prompt("deadline_delete") + candidateList(candidates)
	raw, err := c.complete(ctx, system, msgs)
	if err != nil {
		return Deletion{}, err
	}

	var payload struct {
		IDs          []uint `json:"ids"`
		Confirmation bool   `json:"confirmation"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return Deletion{}, err
	}
	return Deletion{
		IDs:       onlyKnownIDs(payload.IDs, candidates),
		Confirmed: payload.Confirmation,
	}, nil
}

func (c *Client) ExtractReminderCreation(ctx context.Context, msgs []model.Message) (ReminderCreation, error) {
	raw, err := c.complete(ctx, c.withClock(prompt("reminder_create")), msgs)
	if err != nil {
		return ReminderCreation{}, err
	}

	var payload struct {
		ReminderTime string `json:"reminder_time"`
		Confirmation bool   `json:"confirmation"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return ReminderCreation{}, err
	}

	at, err := parseDateTime(payload.ReminderTime, c.loc)
	if err != nil {
		return ReminderCreation{}, err
	}
	return ReminderCreation{At: at, Confirmed: payload.Confirmation}, nil
}

func (c *Client) ExtractReminderUpdate(ctx context.Context, msgs []model.Message) (ReminderUpdate, error) {
	raw, err := c.complete(ctx, c.withClock(prompt("reminder_update")), msgs)
	if err != nil {
		return ReminderUpdate{}, err
	}

	var payload struct {
		OldReminderTime string `json:"old_reminder_time"`
		NewReminderTime string `json:"new_reminder_time"`
		Confirmation    bool   `json:"confirmation"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return ReminderUpdate{}, err
	}

	oldAt, err := parseDateTime(payload.OldReminderTime, c.loc)
	if err != nil {
		return ReminderUpdate{}, err
	}
	newAt, err := parseDateTime(payload.NewReminderTime, c.loc)
	if err != nil {
		return ReminderUpdate{}, err
	}
	return ReminderUpdate{OldAt: oldAt, NewAt: newAt, Confirmed: payload.Confirmation}, nil
}

func (c *Client) ExtractReminderDeletion(ctx context.Context, msgs []model.Message) (ReminderDeletion, error) {
	raw, err := c.complete(ctx, c.withClock(prompt("reminder_delete")), msgs)
	if err != nil {
		return ReminderDeletion{}, err
	}

	var payload struct {
		ReminderTime string `json:"reminder_time"`
		Confirmation bool   `json:"confirmation"`
	}
	if err := decodePayload(raw, &payload); err != nil {
		return ReminderDeletion{}, err
	}

	at, err := parseDateTime(payload.ReminderTime, c.loc)
	if err != nil {
		return ReminderDeletion{}, err
	}
	return ReminderDeletion{At: at, Confirmed: payload.Confirmation}, nil
}

func (c *Client) Converse(ctx context.Context, msgs []model.Message, username string) (string, error) {
	system := prompt("conversation")
	system = strings.ReplaceAll(system, "{username}", username)
	system = strings.ReplaceAll(system, "{now}", c.now().In(c.loc).Format("3:04PM on January 2, 2006"))
	return c.complete(ctx, system, msgs)
}

// onlyKnownIDs drops hallucinated IDs that are not in the candidate set.
func onlyKnownIDs(ids []uint, candidates []model.Deadline) []uint {
	known := make(map[uint]bool, len(candidates))
	for _, d := range candidates {
		known[d.ID] = true
	}
	var out []uint
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
