package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/lanxat/internal/errs"
	"github.com/and161185/lanxat/internal/limiter"
	"github.com/and161185/lanxat/internal/model"
	"github.com/and161185/lanxat/internal/profile"
	"github.com/and161185/lanxat/internal/translate"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu       sync.Mutex
	answers  []InlineAnswer
	messages []sentMessage
	notify   chan struct{}
}

func newSender() *fakeSender { return &fakeSender{notify: make(chan struct{}, 16)} }

func (f *fakeSender) AnswerInlineQuery(_ context.Context, a InlineAnswer) error {
	f.mu.Lock()
	f.answers = append(f.answers, a)
	f.mu.Unlock()
	f.notify <- struct{}{}
	return nil
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	f.messages = append(f.messages, sentMessage{chatID, text})
	f.mu.Unlock()
	f.notify <- struct{}{}
	return nil
}

func (f *fakeSender) lastMessage(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1].text
}

func (f *fakeSender) lastAnswer(t *testing.T) InlineAnswer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.answers)
	return f.answers[len(f.answers)-1]
}

// memRepo is an in-memory profile repository.
type memRepo struct {
	mu       sync.Mutex
	profiles map[int64]*model.UserProfile
	findErr  error
}

func newMemRepo(ps ...*model.UserProfile) *memRepo {
	r := &memRepo{profiles: map[int64]*model.UserProfile{}}
	for _, p := range ps {
		r.profiles[p.ID] = p.Clone()
	}
	return r
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*model.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *memRepo) Upsert(_ context.Context, p *model.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Created.IsZero() {
		p.Created = time.Now()
	}
	r.profiles[p.ID] = p.Clone()
	return nil
}

func (r *memRepo) get(id int64) *model.UserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[id].Clone()
}

type dictProvider struct {
	dict   map[string]string // "from>to:text"
	detect []string
	err    error
}

func (d *dictProvider) Translate(_ context.Context, _, text, from, to string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.dict[from+">"+to+":"+text], nil
}

func (d *dictProvider) Detect(context.Context, string, string, []string) ([]string, error) {
	return d.detect, nil
}

type fakeInvites struct{ valid map[string]int64 }

func (f fakeInvites) Verify(token string, userID int64) error {
	if f.valid[token] != userID {
		return errs.ErrUnauthorized
	}
	return nil
}

type harness struct {
	svc    *Service
	sender *fakeSender
	repo   *memRepo
	prov   *dictProvider
}

func newHarness(t *testing.T, opts ...limiter.Option) *harness {
	t.Helper()
	p := model.NewUserProfile(1, model.Explicit("en", "ru"))
	p.Configs[model.ConfigInline] = model.Detect("ru", "en", "ru")
	p.Credential = "user-key"
	p.Created = time.Now()

	h := &harness{
		sender: newSender(),
		repo:   newMemRepo(p),
		prov: &dictProvider{detect: []string{"ru"}, dict: map[string]string{
			"en>ru:hello":  "привет",
			"ru>en:привет": "hello",
			"en>de:hello":  "hallo",
		}},
	}
	log := zaptest.NewLogger(t)
	cache := profile.New(h.repo, time.Minute, log)
	orch := translate.NewOrchestrator(h.prov, nil, "server-key", log)
	h.svc = New(cache, orch, h.sender, fakeInvites{valid: map[string]int64{"inv-2": 2}},
		Config{InlineCacheTime: 30, Debounce: opts}, log)
	t.Cleanup(h.svc.Close)
	return h
}

func (h *harness) message(text string) {
	h.svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 100, From: User{ID: 1, UserName: "ann"}, Text: text}})
}

func TestService_MessageTranslation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.message("hello")
	require.Equal(t, "Translated en -> ru\nпривет", h.sender.lastMessage(t))

	h.message(".en.de hello")
	require.Equal(t, "Translated en -> de\nhallo", h.sender.lastMessage(t))
	require.Equal(t, int64(100), h.sender.messages[0].chatID)
}

func TestService_MessageMutationThenUse(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.message(".de = .en.de")
	require.Contains(t, h.sender.lastMessage(t), "Config de set to en → de")
	require.True(t, model.Explicit("en", "de").Equal(h.repo.get(1).Configs["de"]))

	h.message(".de hello")
	require.Equal(t, "Translated en -> de\nhallo", h.sender.lastMessage(t))

	h.message(".bot =")
	require.Contains(t, h.sender.lastMessage(t), "can't be deleted")
}

func TestService_MessageErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.message(".nope hello")
	require.Contains(t, h.sender.lastMessage(t), "Config nope doesn't exist")

	h.prov.err = errors.New("quota exceeded")
	h.message("hello")
	require.Contains(t, h.sender.lastMessage(t), "quota exceeded")

	h.svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 9, From: User{ID: 9}, Text: "hello"}})
	require.Contains(t, h.sender.lastMessage(t), "user id is 9")
}

func TestService_Commands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.message("/help")
	require.Contains(t, h.sender.lastMessage(t), "Directives:")

	h.message("/start")
	require.Contains(t, h.sender.lastMessage(t), "Directives:")

	h.message("/configs")
	out := h.sender.lastMessage(t)
	require.Contains(t, out, ".bot = .en.ru")
	require.Contains(t, out, ".inline = (en,ru) .ru.ru")

	h.message("/frobnicate now")
	require.Equal(t, "Sorry, the command `/frobnicate now` is not implemented yet", h.sender.lastMessage(t))

	h.message("/key")
	require.Contains(t, h.sender.lastMessage(t), "Usage")
}

func TestService_KeyCreatesProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	send := func(text string) {
		h.svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 5, From: User{ID: 5}, Text: text}})
	}

	send("hello")
	require.Contains(t, h.sender.lastMessage(t), "don't have a profile")

	send("/key my-secret")
	require.Contains(t, h.sender.lastMessage(t), "saved")
	p := h.repo.get(5)
	require.Equal(t, "my-secret", p.Credential)
	require.Contains(t, p.Configs, model.ConfigBot)
	require.Contains(t, p.Configs, model.ConfigInline)

	send("hello")
	require.Equal(t, "Translated en -> ru\nпривет", h.sender.lastMessage(t))
}

func TestService_StartWithInvite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	// stored but not usable
	h.repo.profiles[2] = &model.UserProfile{ID: 2, Created: time.Now(), Configs: map[string]model.LangConfig{}}
	send := func(text string) {
		h.svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 2, From: User{ID: 2}, Text: text}})
	}

	send("hello")
	require.Contains(t, h.sender.lastMessage(t), "not set up")

	send("/start inv-1")
	require.Contains(t, h.sender.lastMessage(t), "not valid")
	require.False(t, h.repo.get(2).Enabled)

	send("/start inv-2")
	require.Contains(t, h.sender.lastMessage(t), "enabled")
	p := h.repo.get(2)
	require.True(t, p.Enabled)
	require.Contains(t, p.Configs, model.ConfigBot)

	send("hello")
	require.Equal(t, "Translated en -> ru\nпривет", h.sender.lastMessage(t))
}

func TestService_InlineResults(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.svc.HandleInlineQuery(context.Background(), InlineQuery{ID: "q1", From: User{ID: 1}, Query: "привет"})
	a := h.sender.lastAnswer(t)
	require.Equal(t, "q1", a.QueryID)
	require.Equal(t, 30, a.CacheTime)
	require.Equal(t, []InlineResult{
		{ID: "1", Title: "en", Description: "hello", Text: "hello"},
		{ID: "2", Title: "ru", Description: "привет", Text: "привет"},
		{ID: "3", Title: "reversed", Description: "привет", Text: "привет"},
		{ID: "4", Title: "ru -> en", Description: "- привет\n- hello", Text: "- привет\n- hello"},
	}, a.Results)
}

func TestService_InlineReverseOmitted(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.svc.HandleInlineQuery(context.Background(), InlineQuery{ID: "q", From: User{ID: 1}, Query: ".en.de hello"})
	a := h.sender.lastAnswer(t)
	require.Len(t, a.Results, 3)
	require.Equal(t, "1", a.Results[0].ID)
	require.Equal(t, "hallo", a.Results[0].Text)
	require.Equal(t, "4", a.Results[2].ID)
}

func TestService_InlineSpecialCases(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.svc.HandleInlineQuery(ctx, InlineQuery{ID: "e", From: User{ID: 1}, Query: "  "})
	a := h.sender.lastAnswer(t)
	require.Len(t, a.Results, 1)
	require.Equal(t, "Information", a.Results[0].Title)

	h.svc.HandleInlineQuery(ctx, InlineQuery{ID: "m", From: User{ID: 1}, Query: ".x = .en.de"})
	a = h.sender.lastAnswer(t)
	require.Equal(t, "Information", a.Results[0].Title)
	require.NotContains(t, h.repo.get(1).Configs, "x")

	h.svc.HandleInlineQuery(ctx, InlineQuery{ID: "n", From: User{ID: 77}, Query: "hello"})
	a = h.sender.lastAnswer(t)
	require.Equal(t, "n", a.QueryID)
	require.Equal(t, "Error", a.Results[0].Title)
	require.NotEmpty(t, a.HelpText)
	require.Contains(t, a.Results[0].Text, "77")

	h.svc.HandleInlineQuery(ctx, InlineQuery{ID: "c", From: User{ID: 1}, Query: ".missing hello"})
	a = h.sender.lastAnswer(t)
	require.Equal(t, "Error", a.Results[0].Title)
	require.Empty(t, a.HelpText)
}

type manualTicker struct{ c chan time.Time }

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               {}

func TestService_InlineQueriesAreDebounced(t *testing.T) {
	t.Parallel()
	tk := &manualTicker{c: make(chan time.Time)}
	h := newHarness(t, limiter.WithTicker(func(time.Duration) limiter.Ticker { return tk }))
	ctx := context.Background()

	for i, q := range []string{".en.de h", ".en.de hel", ".en.de hello"} {
		h.svc.OnUpdate(ctx, Update{InlineQuery: &InlineQuery{ID: string(rune('a' + i)), From: User{ID: 1}, Query: q}})
	}
	tk.c <- time.Now()

	select {
	case <-h.sender.notify:
	case <-time.After(time.Second):
		t.Fatal("no answer")
	}
	a := h.sender.lastAnswer(t)
	require.Equal(t, "c", a.QueryID)
	require.Equal(t, "hallo", a.Results[0].Text)
	h.sender.mu.Lock()
	require.Len(t, h.sender.answers, 1)
	h.sender.mu.Unlock()
}

func TestService_OnUpdateRecoversPanics(t *testing.T) {
	t.Parallel()
	svc := New(newMemRepoCache(t), nil, newSender(), nil, Config{}, zaptest.NewLogger(t))
	defer svc.Close()

	// nil translator panics inside the handler
	require.NotPanics(t, func() {
		svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 1, From: User{ID: 1}, Text: "hello"}})
	})
	require.NotPanics(t, func() { svc.OnUpdate(context.Background(), Update{}) })
}

func newMemRepoCache(t *testing.T) *profile.Cache {
	t.Helper()
	p := model.NewUserProfile(1, model.Explicit("en", "ru"))
	p.Enabled = true
	p.Created = time.Now()
	return profile.New(newMemRepo(p), time.Minute, nil)
}

type memAttempts struct {
	mu       sync.Mutex
	fails    map[int64]int
	maxFails int
}

func (a *memAttempts) Allow(_ context.Context, userID int64, _ limiter.Action) (bool, time.Duration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fails[userID] >= a.maxFails {
		return false, 30 * time.Minute, nil
	}
	return true, 0, nil
}

func (a *memAttempts) Success(_ context.Context, userID int64, _ limiter.Action) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.fails, userID)
	return nil
}

func (a *memAttempts) Failure(_ context.Context, userID int64, _ limiter.Action) (bool, time.Duration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fails[userID]++
	return a.fails[userID] >= a.maxFails, 30 * time.Minute, nil
}

func TestService_InviteLockout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.svc.cfg.Attempts = &memAttempts{fails: map[int64]int{}, maxFails: 2}
	send := func(text string) {
		h.svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 2, From: User{ID: 2}, Text: text}})
	}

	send("/start bad-1")
	require.Contains(t, h.sender.lastMessage(t), "not valid")
	send("/start bad-2")
	require.Contains(t, h.sender.lastMessage(t), "not valid")

	// valid invite is refused while blocked
	send("/start inv-2")
	require.Equal(t, "Too many invalid invites, try again in 30m0s.", h.sender.lastMessage(t))
	require.Nil(t, h.repo.get(2))
}

func TestService_StartSetupPayloadIsNotAnInvite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	attempts := &memAttempts{fails: map[int64]int{}, maxFails: 2}
	h.svc.cfg.Attempts = attempts
	send := func(text string) {
		h.svc.OnUpdate(context.Background(), Update{Message: &Message{ChatID: 2, From: User{ID: 2}, Text: text}})
	}

	send("/start " + SetupPayload)
	require.Equal(t, helpText, h.sender.lastMessage(t))
	send("/start " + SetupPayload)
	require.Equal(t, helpText, h.sender.lastMessage(t))
	attempts.mu.Lock()
	require.Zero(t, attempts.fails[2])
	attempts.mu.Unlock()

	send("/start inv-2")
	require.Contains(t, h.sender.lastMessage(t), "enabled")
	require.True(t, h.repo.get(2).Enabled)
}

func TestService_UnclassifiedErrorsGetNoReply(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.repo.mu.Lock()
	h.repo.findErr = errors.New("connection reset")
	h.repo.mu.Unlock()

	h.message("hello")
	h.svc.HandleInlineQuery(context.Background(), InlineQuery{ID: "q", From: User{ID: 1}, Query: "hello"})

	h.sender.mu.Lock()
	defer h.sender.mu.Unlock()
	require.Empty(t, h.sender.messages)
	require.Empty(t, h.sender.answers)
}
