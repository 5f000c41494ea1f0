package selector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/device"
	"color_academy_backend/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// subscriptionSpy 记录订阅/取消订阅次数
type subscriptionSpy struct {
	mu           sync.Mutex
	store        *progress.Store
	subscribed   int
	unsubscribed int
}

func (s *subscriptionSpy) Subscribe(fn func(progress.State)) func() {
	s.mu.Lock()
	s.subscribed++
	s.mu.Unlock()

	unsub := s.store.Subscribe(fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.unsubscribed++
			s.mu.Unlock()
			unsub()
		})
	}
}

func (s *subscriptionSpy) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed - s.unsubscribed
}

type progressView struct {
	variant  Variant
	spy      *subscriptionSpy
	updates  *[]Variant
	unmounts *int
}

func (v *progressView) Mount(scope *Scope) error {
	scope.Track(v.spy.Subscribe(func(progress.State) {
		*v.updates = append(*v.updates, v.variant)
	}))
	return nil
}

func (v *progressView) Unmount() {
	*v.unmounts++
}

type fixture struct {
	store    *progress.Store
	spy      *subscriptionSpy
	updates  []Variant
	unmounts int
}

func newFixture() *fixture {
	store := progress.NewStore(nil, "test")
	// 无持久化存储时不会失败
	_ = store.Load(context.Background())
	return &fixture{store: store, spy: &subscriptionSpy{store: store}}
}

func (f *fixture) page(id string, requiresAuth bool) Page {
	return Page{
		ID:           id,
		RequiresAuth: requiresAuth,
		Mobile: func() Component {
			return &progressView{variant: VariantMobile, spy: f.spy, updates: &f.updates, unmounts: &f.unmounts}
		},
		Desktop: func() Component {
			return &progressView{variant: VariantDesktop, spy: f.spy, updates: &f.updates, unmounts: &f.unmounts}
		},
	}
}

func TestPolicySelect(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, VariantMobile, p.Select(device.Profile{Class: device.Mobile}))
	assert.Equal(t, VariantDesktop, p.Select(device.Profile{Class: device.Tablet}))
	assert.Equal(t, VariantDesktop, p.Select(device.Profile{Class: device.Desktop}))
	assert.Equal(t, VariantDesktop, p.Select(device.Default()))

	p = Policy{TabletVariant: VariantMobile}
	assert.Equal(t, VariantMobile, p.Select(device.Profile{Class: device.Tablet}))
}

func TestResizeSwapsVariantExactlyOnce(t *testing.T) {
	f := newFixture()
	watcher := device.NewWatcher(device.DefaultBreakpoints(), 0)
	defer watcher.Close()

	watcher.Update(device.Signals{ViewportWidth: 1200, ViewportHeight: 800})

	host := NewHost(f.page("tutorials", false), DefaultPolicy(), nil)
	var regions []Region
	host.OnChange(func(r Region) { regions = append(regions, r) })
	host.Start(context.Background(), watcher.Current())
	unsubscribe := watcher.Subscribe(host.UpdateProfile)

	require.Equal(t, VariantDesktop, host.Region().Variant)
	assert.Equal(t, 1, f.spy.active())

	watcher.Update(device.Signals{ViewportWidth: 600, ViewportHeight: 800})
	watcher.Update(device.Signals{ViewportWidth: 580, ViewportHeight: 800})

	assert.Equal(t, VariantMobile, host.Region().Variant)
	assert.Equal(t, 2, host.Mounts())
	assert.Equal(t, 1, f.unmounts)
	assert.Equal(t, 1, f.spy.active())
	assert.Equal(t, 1, f.store.SubscriberCount())

	// 每次状态变化只有一个 mounted 区域，不存在双挂载
	require.Len(t, regions, 2)
	assert.Equal(t, VariantDesktop, regions[0].Variant)
	assert.Equal(t, VariantMobile, regions[1].Variant)

	unsubscribe()
	host.Close()
}

func TestUnmountLeavesNoSubscriptions(t *testing.T) {
	f := newFixture()
	watcher := device.NewWatcher(device.DefaultBreakpoints(), 0)
	watcher.Update(device.Signals{ViewportWidth: 400, ViewportHeight: 800})

	host := NewHost(f.page("quiz", false), DefaultPolicy(), nil)
	host.Start(context.Background(), watcher.Current())
	unsubscribe := watcher.Subscribe(host.UpdateProfile)
	require.Equal(t, VariantMobile, host.Region().Variant)

	watcher.Update(device.Signals{ViewportWidth: 1300, ViewportHeight: 800})
	require.Equal(t, VariantDesktop, host.Region().Variant)

	unsubscribe()
	host.Close()
	watcher.Close()

	assert.Equal(t, 0, f.spy.active())
	assert.Equal(t, 2, f.spy.subscribed)
	assert.Equal(t, 0, f.store.SubscriberCount())
	assert.Equal(t, 0, watcher.SubscriberCount())
	assert.Equal(t, StatusClosed, host.Region().Status)

	// 卸载后的写入不会触发已卸载视图
	before := len(f.updates)
	require.NoError(t, f.store.SetChapterProgress(context.Background(), progress.Beginner, "ch1", progress.ChapterProgress{Completed: true}))
	assert.Equal(t, before, len(f.updates))
}

func TestMountedViewReceivesProgress(t *testing.T) {
	f := newFixture()
	host := NewHost(f.page("tutorials", false), DefaultPolicy(), nil)
	host.Start(context.Background(), device.Profile{Class: device.Mobile})
	defer host.Close()

	require.NoError(t, f.store.SetChapterProgress(context.Background(), progress.Beginner, "ch1", progress.ChapterProgress{}))
	assert.Equal(t, []Variant{VariantMobile}, f.updates)
}

func TestProfileChangeWithinSameVariantDoesNotRemount(t *testing.T) {
	f := newFixture()
	host := NewHost(f.page("home", false), DefaultPolicy(), nil)
	host.Start(context.Background(), device.Profile{Class: device.Desktop, ViewportWidth: 1400})
	defer host.Close()

	host.UpdateProfile(device.Profile{Class: device.Tablet, ViewportWidth: 900})
	host.UpdateProfile(device.Profile{Class: device.Desktop, ViewportWidth: 1100, HasTouch: true})

	assert.Equal(t, 1, host.Mounts())
	assert.Equal(t, 0, f.unmounts)
}

type blockingAuth struct {
	*auth.SessionAuthenticator
	release chan struct{}
	err     error
}

func (b *blockingAuth) CurrentUser(ctx context.Context) (*auth.User, error) {
	<-b.release
	if b.err != nil {
		return nil, b.err
	}
	return b.SessionAuthenticator.CurrentUser(ctx)
}

func TestGatedPageStaysLoadingUntilAuthResolves(t *testing.T) {
	f := newFixture()
	authn := &blockingAuth{
		SessionAuthenticator: auth.NewSessionAuthenticator(&auth.User{ID: 7}),
		release:              make(chan struct{}),
	}

	host := NewHost(f.page("practice", true), DefaultPolicy(), authn)
	var statuses []Status
	var mu sync.Mutex
	host.OnChange(func(r Region) {
		mu.Lock()
		statuses = append(statuses, r.Status)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		host.Start(context.Background(), device.Profile{Class: device.Desktop})
		close(done)
	}()

	require.Eventually(t, func() bool { return host.Region().Status == StatusLoading && authn.ListenerCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, host.Mounts())
	assert.Equal(t, 0, f.spy.active())

	close(authn.release)
	<-done

	assert.Equal(t, StatusMounted, host.Region().Status)
	mu.Lock()
	assert.Equal(t, []Status{StatusLoading, StatusMounted}, statuses)
	mu.Unlock()

	host.Close()
	assert.Equal(t, 0, authn.ListenerCount())
	assert.Equal(t, 0, f.spy.active())
}

func TestGatedPageRedirectsAndFollowsAuthChanges(t *testing.T) {
	f := newFixture()
	authn := auth.NewSessionAuthenticator(nil)

	host := NewHost(f.page("solver", true), DefaultPolicy(), authn)
	host.Start(context.Background(), device.Profile{Class: device.Mobile})
	defer host.Close()

	assert.Equal(t, StatusRedirect, host.Region().Status)
	assert.Equal(t, 0, host.Mounts())

	authn.SignIn(&auth.User{ID: 1})
	assert.Equal(t, StatusMounted, host.Region().Status)
	assert.Equal(t, VariantMobile, host.Region().Variant)
	assert.Equal(t, 1, f.spy.active())

	authn.SignOut()
	assert.Equal(t, StatusRedirect, host.Region().Status)
	assert.Equal(t, 0, f.spy.active())
}

func TestGatedPageWithoutAuthenticatorRedirects(t *testing.T) {
	f := newFixture()
	host := NewHost(f.page("solver", true), DefaultPolicy(), nil)
	host.Start(context.Background(), device.Default())
	defer host.Close()
	assert.Equal(t, StatusRedirect, host.Region().Status)
}

func TestAuthFailureCanBeReset(t *testing.T) {
	f := newFixture()
	authn := &blockingAuth{
		SessionAuthenticator: auth.NewSessionAuthenticator(&auth.User{ID: 3}),
		release:              make(chan struct{}),
		err:                  errors.New("auth backend unreachable"),
	}
	close(authn.release)

	host := NewHost(f.page("practice", true), DefaultPolicy(), authn)
	host.Start(context.Background(), device.Default())
	defer host.Close()

	r := host.Region()
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, ErrorKindAuth, r.Kind)
	assert.True(t, r.Retryable())

	authn.err = nil
	host.Reset()
	assert.Equal(t, StatusMounted, host.Region().Status)
}

type brokenView struct {
	panics  bool
	scopeFn func(*Scope)
}

func (b *brokenView) Mount(scope *Scope) error {
	if b.scopeFn != nil {
		b.scopeFn(scope)
	}
	if b.panics {
		panic("boom")
	}
	return errors.New("render failed")
}

func (b *brokenView) Unmount() {}

func TestMountFailureIsIsolatedInRegion(t *testing.T) {
	f := newFixture()
	attempts := 0
	page := Page{
		ID: "mixing",
		Desktop: func() Component {
			attempts++
			if attempts == 1 {
				return &brokenView{panics: true, scopeFn: func(s *Scope) {
					s.Track(f.spy.Subscribe(func(progress.State) {}))
				}}
			}
			return &progressView{variant: VariantDesktop, spy: f.spy, updates: &f.updates, unmounts: &f.unmounts}
		},
	}

	host := NewHost(page, DefaultPolicy(), nil)
	host.Start(context.Background(), device.Default())
	defer host.Close()

	r := host.Region()
	require.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, ErrorKindMount, r.Kind)
	var pe *PanicError
	assert.ErrorAs(t, r.Err, &pe)
	// 挂载失败时已注册的订阅被释放
	assert.Equal(t, 0, f.spy.active())

	host.Reset()
	assert.Equal(t, StatusMounted, host.Region().Status)
	assert.Equal(t, 1, f.spy.active())
}

func TestMissingVariantFails(t *testing.T) {
	page := Page{ID: "desktop-only", Desktop: func() Component { return &brokenView{} }}
	host := NewHost(page, DefaultPolicy(), nil)
	host.Start(context.Background(), device.Profile{Class: device.Mobile})
	defer host.Close()

	r := host.Region()
	assert.Equal(t, StatusFailed, r.Status)
	assert.ErrorIs(t, r.Err, ErrVariantMissing)
}

func TestSetPolicySwapsTabletVariant(t *testing.T) {
	f := newFixture()
	host := NewHost(f.page("home", false), DefaultPolicy(), nil)
	host.Start(context.Background(), device.Profile{Class: device.Tablet, ViewportWidth: 900})
	defer host.Close()
	require.Equal(t, VariantDesktop, host.Region().Variant)

	host.SetPolicy(Policy{TabletVariant: VariantMobile})
	assert.Equal(t, VariantMobile, host.Region().Variant)
	assert.Equal(t, 2, host.Mounts())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(Page{ID: "quiz"})
	r.Register(Page{ID: "home"})

	p, err := r.Lookup("quiz")
	require.NoError(t, err)
	assert.Equal(t, "quiz", p.ID)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrPageNotFound)

	pages := r.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, "home", pages[0].ID)
}
