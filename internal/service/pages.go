package service

import (
	"color_academy_backend/internal/auth"
	"color_academy_backend/internal/gateway"
	"color_academy_backend/internal/progress"
	"color_academy_backend/internal/selector"
	"color_academy_backend/pkg/logger"
	"context"
	"errors"

	"go.uber.org/zap"
)

// 页面标识
const (
	PageHome      = "home"
	PageTutorials = "tutorials"
	PageQuiz      = "quiz"
	PageMixing    = "mixing"
	PageSolver    = "solver"
	PagePractice  = "practice"
)

// 推送给客户端的消息类型
const (
	MsgRegion   = "REGION"
	MsgView     = "VIEW"
	MsgProgress = "PROGRESS"
	MsgRecords  = "RECORDS"
	MsgError    = "ERROR"
)

// 移动端列表只展示最近几条
const mobileListLimit = 5

var errNoUser = errors.New("view requires a signed-in user")

// ViewEnv 挂载的视图通过 Scope 的 context 取得所属连接的依赖
type ViewEnv struct {
	Authn    auth.Authenticator
	Emit     func(msgType string, data interface{})
	Progress *ProgressService
	Formulas *FormulaService
	Images   *ImageService
}

type viewEnvKey struct{}

func WithViewEnv(ctx context.Context, env *ViewEnv) context.Context {
	return context.WithValue(ctx, viewEnvKey{}, env)
}

func viewEnvFrom(ctx context.Context) *ViewEnv {
	env, _ := ctx.Value(viewEnvKey{}).(*ViewEnv)
	if env == nil {
		return &ViewEnv{Emit: func(string, interface{}) {}}
	}
	return env
}

func (e *ViewEnv) userID(ctx context.Context) (uint, error) {
	if e.Authn == nil {
		return 0, errNoUser
	}
	u, err := e.Authn.CurrentUser(ctx)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, errNoUser
	}
	return u.ID, nil
}

// NewPageRegistry 站点的全部页面，每个页面提供移动端与桌面端两个变体
func NewPageRegistry() *selector.Registry {
	r := selector.NewRegistry()

	r.Register(layoutPage(PageHome, "Home", false))
	r.Register(layoutPage(PageQuiz, "Color Theory Quiz", false))

	r.Register(selector.Page{
		ID:           PageTutorials,
		Title:        "Tutorials",
		RequiresAuth: true,
		Mobile:       func() selector.Component { return &tutorialView{variant: selector.VariantMobile} },
		Desktop:      func() selector.Component { return &tutorialView{variant: selector.VariantDesktop} },
	})

	r.Register(recordsPage(PageMixing, "Mixing Lab", func(ctx context.Context, env *ViewEnv, userID uint) ([]gateway.Record, error) {
		return env.Formulas.ListFormulas(ctx, userID)
	}))
	r.Register(recordsPage(PageSolver, "Color Solver", func(ctx context.Context, env *ViewEnv, userID uint) ([]gateway.Record, error) {
		return env.Formulas.ListSolverEntries(ctx, userID)
	}))
	r.Register(recordsPage(PagePractice, "Practice Uploads", func(ctx context.Context, env *ViewEnv, userID uint) ([]gateway.Record, error) {
		return env.Images.List(ctx, userID)
	}))

	return r
}

// layoutView 公开页面，只下发布局
type layoutView struct {
	page    string
	variant selector.Variant
}

func layoutPage(id, title string, requiresAuth bool) selector.Page {
	return selector.Page{
		ID:           id,
		Title:        title,
		RequiresAuth: requiresAuth,
		Mobile:       func() selector.Component { return &layoutView{page: id, variant: selector.VariantMobile} },
		Desktop:      func() selector.Component { return &layoutView{page: id, variant: selector.VariantDesktop} },
	}
}

func layoutFor(v selector.Variant) string {
	if v == selector.VariantMobile {
		return "stacked"
	}
	return "sidebar"
}

func (v *layoutView) Mount(scope *selector.Scope) error {
	viewEnvFrom(scope.Context()).Emit(MsgView, map[string]interface{}{
		"page":    v.page,
		"variant": v.variant,
		"layout":  layoutFor(v.variant),
	})
	return nil
}

func (v *layoutView) Unmount() {}

// tutorialView 订阅当前用户的进度，移动端只推送汇总，桌面端推送章节明细
type tutorialView struct {
	variant selector.Variant
}

func (v *tutorialView) Mount(scope *selector.Scope) error {
	env := viewEnvFrom(scope.Context())
	if env.Progress == nil {
		return errors.New("progress service unavailable")
	}
	userID, err := env.userID(scope.Context())
	if err != nil {
		return err
	}

	var store *progress.Store
	scope.Go(func(ctx context.Context) error {
		// 首次访问可能需要从存储水合
		var err error
		store, err = env.Progress.StoreFor(ctx, userID)
		return err
	}, func(err error) {
		if err != nil {
			logger.Log.Warn("view: progress load failed", zap.String("page", PageTutorials), zap.Error(err))
			env.Emit(MsgError, map[string]interface{}{
				"page":      PageTutorials,
				"message":   err.Error(),
				"retryable": true,
			})
			return
		}
		scope.Track(store.Subscribe(func(st progress.State) {
			env.Emit(MsgProgress, v.payload(st))
		}))
		env.Emit(MsgProgress, v.payload(store.State()))
	})
	return nil
}

func (v *tutorialView) payload(st progress.State) map[string]interface{} {
	data := map[string]interface{}{
		"page":    PageTutorials,
		"variant": v.variant,
		"summary": st.Summary(),
	}
	if v.variant == selector.VariantDesktop {
		data["courses"] = st.Courses
		data["currentChapterId"] = st.CurrentChapterID
	}
	return data
}

func (v *tutorialView) Unmount() {}

type recordsLoader func(ctx context.Context, env *ViewEnv, userID uint) ([]gateway.Record, error)

// recordsView 挂载后异步加载网关记录，卸载后结果直接丢弃
type recordsView struct {
	page    string
	variant selector.Variant
	load    recordsLoader
}

func recordsPage(id, title string, load recordsLoader) selector.Page {
	return selector.Page{
		ID:           id,
		Title:        title,
		RequiresAuth: true,
		Mobile: func() selector.Component {
			return &recordsView{page: id, variant: selector.VariantMobile, load: load}
		},
		Desktop: func() selector.Component {
			return &recordsView{page: id, variant: selector.VariantDesktop, load: load}
		},
	}
}

func (v *recordsView) Mount(scope *selector.Scope) error {
	env := viewEnvFrom(scope.Context())
	userID, err := env.userID(scope.Context())
	if err != nil {
		return err
	}

	env.Emit(MsgView, map[string]interface{}{
		"page":    v.page,
		"variant": v.variant,
		"layout":  layoutFor(v.variant),
	})

	var records []gateway.Record
	scope.Go(func(ctx context.Context) error {
		var err error
		records, err = v.load(ctx, env, userID)
		return err
	}, func(err error) {
		if err != nil {
			logger.Log.Warn("view: load failed", zap.String("page", v.page), zap.Error(err))
			env.Emit(MsgError, map[string]interface{}{
				"page":      v.page,
				"message":   err.Error(),
				"retryable": true,
			})
			return
		}
		if v.variant == selector.VariantMobile && len(records) > mobileListLimit {
			records = records[:mobileListLimit]
		}
		env.Emit(MsgRecords, map[string]interface{}{
			"page":    v.page,
			"variant": v.variant,
			"records": records,
		})
	})
	return nil
}

func (v *recordsView) Unmount() {}
