package service

import (
	"time"

	"umbra/internal/config"
	"umbra/internal/logger"
	"umbra/internal/mitigate"
	"umbra/internal/rules"
	"umbra/internal/storage"
	"umbra/pkg/rulespec"
)

// App 带持久化的完整装配：引擎 + 存储仓库。
// 设置写入在此层经过隐私门控，隐私模式下的变更只改内存
type App struct {
	Engine   *Engine
	Settings *storage.SettingsRepo
	Events   *storage.EventRepo
	Rules    *storage.RulesRepo
	KV       *storage.KVStore

	db  *storage.DB
	log logger.Logger
}

// Build 打开数据库、恢复持久化状态并装配引擎。
// dbPath 为空时使用配置或平台默认路径
func Build(cfg *config.Config, driver mitigate.PageDriver, notifier mitigate.Notifier, l logger.Logger) (*App, error) {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	var db *storage.DB
	var err error
	if cfg.Sqlite.Db != "" {
		db, err = storage.NewDBAt(cfg.Sqlite.Db)
	} else {
		db, err = storage.NewDB()
	}
	if err != nil {
		return nil, err
	}

	settings := storage.NewSettingsRepo(db)
	eventsRepo := storage.NewEventRepo(db)
	rulesRepo := storage.NewRulesRepo(db)
	kv := storage.NewKVStore(db)

	eng, err := New(Options{
		Driver:      driver,
		Notifier:    notifier,
		Persister:   rulesRepo,
		EventSink:   eventsRepo,
		Persistent:  kv,
		ClearOnExit: settings.GetClearOnExit,
		RescanEvery: time.Duration(cfg.Observer.RescanSeconds) * time.Second,
		Log:         l,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{
		Engine:   eng,
		Settings: settings,
		Events:   eventsRepo,
		Rules:    rulesRepo,
		KV:       kv,
		db:       db,
		log:      l,
	}
	if err := app.hydrate(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// hydrate 从存储恢复自定义规则、黑白名单与设置
func (a *App) hydrate() error {
	custom, err := a.Rules.LoadCustomRules()
	if err != nil {
		return err
	}
	whitelist, err := a.Rules.LoadList(rules.ListWhitelist)
	if err != nil {
		return err
	}
	blocklist, err := a.Rules.LoadList(rules.ListBlocklist)
	if err != nil {
		return err
	}
	if err := a.Engine.ImportConfig(rulespec.ExportedConfig{
		Version:     rulespec.ExportVersion,
		CustomRules: custom,
		Whitelist:   whitelist,
		Blocklist:   blocklist,
	}); err != nil {
		return err
	}

	// 设置一次性加载并应用
	a.Engine.classifier.SetAdBlock(a.Settings.GetAdBlock())
	a.Engine.SetSecurity(a.Settings.GetSecurityScan())
	a.Engine.SetTrackingProtection(a.Settings.GetTrackingProt())
	a.Engine.SetHTTPSUpgrade(a.Settings.GetHTTPSUpgrade())
	if !a.Settings.GetBool(storage.SettingKeyPrivateMode, true) {
		a.Engine.ExitPrivate()
	}
	a.log.Info("持久化状态恢复完成",
		"customRules", len(custom), "whitelist", len(whitelist), "blocklist", len(blocklist))
	return nil
}

// SetAdBlock 切换广告拦截并持久化；隐私模式下设置不落库
func (a *App) SetAdBlock(on bool) {
	a.Engine.SetAdBlock(on)
	a.saveBool(storage.SettingKeyAdBlock, on)
}

// SetSecurity 切换安全扫描并持久化
func (a *App) SetSecurity(on bool) {
	a.Engine.SetSecurity(on)
	a.saveBool(storage.SettingKeySecurityScan, on)
}

// SetTrackingProtection 切换跟踪保护并持久化
func (a *App) SetTrackingProtection(on bool) {
	a.Engine.SetTrackingProtection(on)
	a.saveBool(storage.SettingKeyTrackingProt, on)
}

// SetHTTPSUpgrade 切换 HTTPS 升级并持久化
func (a *App) SetHTTPSUpgrade(on bool) {
	a.Engine.SetHTTPSUpgrade(on)
	a.saveBool(storage.SettingKeyHTTPSUpgrade, on)
}

// saveBool 隐私模式下任何设置写入不得到达持久化存储
func (a *App) saveBool(key string, v bool) {
	if a.Engine.IsPrivate() {
		return
	}
	if err := a.Settings.SetBool(key, v); err != nil {
		a.log.Err(err, "设置持久化失败", "key", key)
	}
}

// Close 依次停止引擎、事件写入与数据库连接
func (a *App) Close() {
	a.Engine.Teardown()
	a.Events.Stop()
	if err := a.db.Close(); err != nil {
		a.log.Err(err, "关闭数据库失败")
	}
}
