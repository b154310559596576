package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robalobadob/memory-match/internal/daily"
	"github.com/robalobadob/memory-match/internal/game"
	"github.com/robalobadob/memory-match/internal/game/gametest"
	"github.com/robalobadob/memory-match/internal/kv"
	"github.com/robalobadob/memory-match/internal/scores"
	"github.com/robalobadob/memory-match/internal/store"
)

var (
	testPool = []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg"}
	testDay  = time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
)

const testSalt = "test_salt"

type harness struct {
	t      *testing.T
	srv    *Server
	sched  *gametest.ManualScheduler
	scores *scores.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, kv.NewMemory())
}

func newHarnessOn(t *testing.T, backing kv.Store) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		sched:  gametest.NewManualScheduler(),
		scores: scores.New(backing),
	}
	h.srv = New(Deps{
		Sessions:  store.NewMemoryStore(),
		Scores:    h.scores,
		Images:    testPool,
		Scheduler: h.sched,
		Secret:    "test_secret",
		DailySalt: testSalt,
		Now:       func() time.Time { return testDay },
	})
	return h
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (h *harness) newGame(difficulty string, isDaily bool) newGameRes {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/game/new", "", map[string]any{"difficulty": difficulty, "daily": isDaily})
	if rec.Code != http.StatusOK {
		h.t.Fatalf("new game: %d %s", rec.Code, rec.Body.String())
	}
	return decode[newGameRes](h.t, rec)
}

func (h *harness) sel(token string, index int) selectRes {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/game/select", token, map[string]int{"index": index})
	if rec.Code != http.StatusOK {
		h.t.Fatalf("select %d: %d %s", index, rec.Code, rec.Body.String())
	}
	return decode[selectRes](h.t, rec)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != `{"ok":true}` {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", got)
	}
}

func TestNewGameRejectsUnknownDifficulty(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/game/new", "", map[string]string{"difficulty": "NIGHTMARE"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestGameRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/game", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/game", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", rec.Code)
	}
}

func TestNewGameState(t *testing.T) {
	h := newHarness(t)
	res := h.newGame("medium", false)
	if res.Token == "" || res.GameID == "" {
		t.Fatalf("missing token or id: %+v", res)
	}
	st := res.State
	if st.Status != game.StatusPlaying || st.Difficulty != game.Medium {
		t.Fatalf("state = %s/%s", st.Status, st.Difficulty)
	}
	if len(st.Cards) != 20 || st.Stats.TotalPairs != 10 {
		t.Fatalf("cards = %d, total pairs = %d", len(st.Cards), st.Stats.TotalPairs)
	}
	for _, c := range st.Cards {
		if c.PairID != nil || c.Image != "" {
			t.Fatalf("face-down card leaks its face: %+v", c)
		}
	}

	rec := h.do(http.MethodGet, "/game", res.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get game: %d", rec.Code)
	}
	if got := decode[game.State](t, rec); got.ID != res.GameID {
		t.Fatalf("id = %q, want %q", got.ID, res.GameID)
	}
}

func TestDailyGameWinAndScore(t *testing.T) {
	h := newHarness(t)
	res := h.newGame("EASY", true)
	if res.Date != "2024-03-09" {
		t.Fatalf("date = %q", res.Date)
	}

	board, err := game.Generate(game.Easy, testPool, daily.Rand(testDay, testSalt))
	if err != nil {
		t.Fatal(err)
	}
	byPair := map[int][]int{}
	for i, c := range board.Cards {
		byPair[c.PairID] = append(byPair[c.PairID], i)
	}

	// Scoring before the win is refused.
	if rec := h.do(http.MethodPost, "/game/score", res.Token, map[string]string{"name": "kevin"}); rec.Code != http.StatusConflict {
		t.Fatalf("early score: %d", rec.Code)
	}

	var last selectRes
	for pid := 0; pid < 6; pid++ {
		a, b := byPair[pid][0], byPair[pid][1]
		first := h.sel(res.Token, a)
		if !first.Accepted || first.State.Cards[a].PairID == nil || *first.State.Cards[a].PairID != pid {
			t.Fatalf("pair %d first pick: %+v", pid, first)
		}
		last = h.sel(res.Token, b)
		if !last.Accepted {
			t.Fatalf("pair %d second pick rejected", pid)
		}
		h.sched.Advance(game.DefaultMatchDelay)
	}
	if last.State.Phase != game.PhaseResolving {
		t.Fatalf("last pick phase = %s", last.State.Phase)
	}

	st := decode[game.State](t, h.do(http.MethodGet, "/game", res.Token, nil))
	if st.Status != game.StatusWon || st.Stats.Moves != 6 || st.Stats.Pairs != 6 || st.Stats.Best != 6 {
		t.Fatalf("after win: %+v", st.Stats)
	}

	rec := h.do(http.MethodPost, "/game/score", res.Token, map[string]string{"name": "kevin"})
	if rec.Code != http.StatusOK {
		t.Fatalf("score: %d %s", rec.Code, rec.Body.String())
	}
	lb := decode[leaderboardRes](t, rec)
	if len(lb.Top) != 1 || lb.Top[0].PlayerName != "kevin" || lb.Top[0].Moves != 6 {
		t.Fatalf("leaderboard = %+v", lb.Top)
	}
	if rec := h.do(http.MethodPost, "/game/score", res.Token, map[string]string{"name": "kevin"}); rec.Code != http.StatusConflict {
		t.Fatalf("second score: %d", rec.Code)
	}

	best := decode[bestRes](t, h.do(http.MethodGet, "/best/easy", "", nil))
	if !best.HasRecord || best.Best != 6 || best.Difficulty != game.Easy {
		t.Fatalf("best = %+v", best)
	}
	none := decode[bestRes](t, h.do(http.MethodGet, "/best/HARD", "", nil))
	if none.HasRecord || none.Best != 0 {
		t.Fatalf("hard best = %+v", none)
	}

	easy := decode[leaderboardRes](t, h.do(http.MethodGet, "/leaderboard?difficulty=EASY", "", nil))
	if len(easy.Top) != 1 {
		t.Fatalf("easy board = %+v", easy.Top)
	}
	medium := decode[leaderboardRes](t, h.do(http.MethodGet, "/leaderboard?difficulty=MEDIUM", "", nil))
	if len(medium.Top) != 0 {
		t.Fatalf("medium board = %+v", medium.Top)
	}
}

func TestDailyDeckIsStableForTheDay(t *testing.T) {
	h := newHarness(t)
	reveal := func() []int {
		res := h.newGame("EASY", true)
		var ids []int
		for i := 0; i < 12; i += 2 {
			a := h.sel(res.Token, i)
			b := h.sel(res.Token, i+1)
			ids = append(ids, *a.State.Cards[i].PairID, *b.State.Cards[i+1].PairID)
			h.sched.Advance(game.DefaultMismatchDelay)
		}
		return ids
	}
	first, second := reveal(), reveal()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("daily decks differ: %v vs %v", first, second)
		}
	}
}

func TestSelectWhileResolvingIsRejected(t *testing.T) {
	h := newHarness(t)
	res := h.newGame("EASY", false)
	h.sel(res.Token, 0)
	h.sel(res.Token, 1)
	third := h.sel(res.Token, 2)
	if third.Accepted {
		t.Fatal("third pick accepted while resolving")
	}
	if third.State.Cards[2].Revealed {
		t.Fatal("third card revealed")
	}
}

func TestSelectBadBody(t *testing.T) {
	h := newHarness(t)
	res := h.newGame("EASY", false)
	if rec := h.do(http.MethodPost, "/game/select", res.Token, map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing index: %d", rec.Code)
	}
	if out := h.sel(res.Token, 99); out.Accepted {
		t.Fatal("out of range index accepted")
	}
}

func TestRestartAndReset(t *testing.T) {
	h := newHarness(t)
	res := h.newGame("EASY", false)
	h.sel(res.Token, 0)
	h.sel(res.Token, 1)

	rec := h.do(http.MethodPost, "/game/restart", res.Token, map[string]string{"difficulty": "HARD"})
	if rec.Code != http.StatusOK {
		t.Fatalf("restart: %d", rec.Code)
	}
	st := decode[game.State](t, rec)
	if st.Difficulty != game.Hard || len(st.Cards) != 24 || st.Stats.Moves != 0 {
		t.Fatalf("restart state: %s %d cards, %d moves", st.Difficulty, len(st.Cards), st.Stats.Moves)
	}
	// The pending resolution from the old board must not touch the new one.
	h.sched.Advance(2 * time.Second)
	st = decode[game.State](t, h.do(http.MethodGet, "/game", res.Token, nil))
	for _, c := range st.Cards {
		if c.Revealed || c.Matched {
			t.Fatalf("stale callback leaked into new board: %+v", c)
		}
	}

	rec = h.do(http.MethodPost, "/game/restart", res.Token, map[string]string{"difficulty": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad restart difficulty: %d", rec.Code)
	}

	st = decode[game.State](t, h.do(http.MethodPost, "/game/reset", res.Token, nil))
	if st.Status != game.StatusIdle || len(st.Cards) != 0 {
		t.Fatalf("reset state: %s with %d cards", st.Status, len(st.Cards))
	}
}

func TestEndSession(t *testing.T) {
	h := newHarness(t)
	res := h.newGame("EASY", false)
	if rec := h.do(http.MethodDelete, "/game", res.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/game", res.Token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("after delete: %d", rec.Code)
	}
}

func TestCookieSession(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/game/new", "", map[string]string{"difficulty": "EASY"})
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("session cookie = %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/game", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("cookie auth: %d", out.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodOptions, "/game/new", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestNotFoundBodyIsValidJSON(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/no%22such", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != "not_found" || body["path"] != `/no"such` {
		t.Fatalf("body = %+v", body)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	h := newHarness(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Serve(ctx, ln) }()

	res, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("health over the listener: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", res.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v after cancel, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	h := newHarness(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	if err := h.srv.Run(context.Background(), ln.Addr().String()); err == nil {
		t.Fatal("expected an error binding a port already in use")
	}
}

// readOnlyKV serves reads and refuses every write.
type readOnlyKV struct{ kv.Store }

func (readOnlyKV) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestScoreWriteFailureAllowsRetry(t *testing.T) {
	h := newHarnessOn(t, readOnlyKV{Store: kv.NewMemory()})
	res := h.newGame("EASY", true)

	board, err := game.Generate(game.Easy, testPool, daily.Rand(testDay, testSalt))
	if err != nil {
		t.Fatal(err)
	}
	byPair := map[int][]int{}
	for i, c := range board.Cards {
		byPair[c.PairID] = append(byPair[c.PairID], i)
	}
	for pid := 0; pid < 6; pid++ {
		h.sel(res.Token, byPair[pid][0])
		h.sel(res.Token, byPair[pid][1])
		h.sched.Advance(game.DefaultMatchDelay)
	}
	if st := decode[game.State](t, h.do(http.MethodGet, "/game", res.Token, nil)); st.Status != game.StatusWon {
		t.Fatalf("status = %s, want WON even though the best score could not be saved", st.Status)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		rec := h.do(http.MethodPost, "/game/score", res.Token, map[string]string{"name": "stuart"})
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("attempt %d: code = %d, want 503", attempt, rec.Code)
		}
	}
}
