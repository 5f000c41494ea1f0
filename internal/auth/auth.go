// Package auth 认证协作方：页面只依赖 CurrentUser 与 OnAuthStateChange 两个契约，
// 不关心会话如何建立。
package auth

import (
	"context"
	"sort"
	"sync"
)

type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type Authenticator interface {
	CurrentUser(ctx context.Context) (*User, error)
	// OnAuthStateChange 登录/登出时回调，user 为 nil 表示已登出
	OnAuthStateChange(fn func(user *User)) (unsubscribe func())
}

// SessionAuthenticator 单个连接的会话状态，由 JWT 解析结果初始化
type SessionAuthenticator struct {
	mu     sync.RWMutex
	user   *User
	subs   map[int]func(*User)
	nextID int
}

func NewSessionAuthenticator(user *User) *SessionAuthenticator {
	return &SessionAuthenticator{
		user: user,
		subs: make(map[int]func(*User)),
	}
}

func (a *SessionAuthenticator) CurrentUser(ctx context.Context) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil, nil
	}
	u := *a.user
	return &u, nil
}

func (a *SessionAuthenticator) OnAuthStateChange(fn func(*User)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
		})
	}
}

func (a *SessionAuthenticator) SignIn(user *User) {
	a.set(user)
}

func (a *SessionAuthenticator) SignOut() {
	a.set(nil)
}

func (a *SessionAuthenticator) ListenerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subs)
}

func (a *SessionAuthenticator) set(user *User) {
	a.mu.Lock()
	a.user = user
	ids := make([]int, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(*User), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, a.subs[id])
	}
	a.mu.Unlock()

	for _, fn := range subs {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}
}
