package storage

import (
	"path/filepath"
	"testing"
	"time"

	"umbra/internal/rules"
	"umbra/pkg/errx"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDBAt(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := NewSettingsRepo(newTestDB(t))

	// 默认值
	if !repo.GetAdBlock() || repo.GetClearOnExit() {
		t.Fatal("默认设置异常")
	}
	if repo.GetTheme() != "system" {
		t.Fatalf("默认主题 %s", repo.GetTheme())
	}

	if err := repo.SetBool(SettingKeyAdBlock, false); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if repo.GetAdBlock() {
		t.Fatal("写入后读取不一致")
	}

	// 覆盖更新
	if err := repo.SetBool(SettingKeyAdBlock, true); err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	if !repo.GetAdBlock() {
		t.Fatal("更新后读取不一致")
	}
}

func TestRulesRepoRoundTrip(t *testing.T) {
	repo := NewRulesRepo(newTestDB(t))

	r, err := rulespec.NewCustomRule("evil.example.com", rulespec.KindDomainLiteral, model.CategoryMalware, "测试")
	if err != nil {
		t.Fatalf("构造规则失败: %v", err)
	}
	if err := repo.SaveCustomRule(r); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	loaded, err := repo.LoadCustomRules()
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != r.ID || loaded[0].Pattern != r.Pattern {
		t.Fatalf("往返不一致: %+v", loaded)
	}
	if loaded[0].Origin != rulespec.OriginCustom {
		t.Fatalf("来源 %s", loaded[0].Origin)
	}

	if err := repo.DeleteCustomRule(r.ID); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	loaded, _ = repo.LoadCustomRules()
	if len(loaded) != 0 {
		t.Fatal("删除后仍有残留")
	}
}

func TestListEntryRoundTrip(t *testing.T) {
	repo := NewRulesRepo(newTestDB(t))

	if err := repo.SaveListEntry(rules.ListWhitelist, "ok.example.com"); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	// 重复插入视为成功
	if err := repo.SaveListEntry(rules.ListWhitelist, "ok.example.com"); err != nil {
		t.Fatalf("重复保存失败: %v", err)
	}
	if err := repo.SaveListEntry(rules.ListBlocklist, "bad.example.com"); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	white, err := repo.LoadList(rules.ListWhitelist)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if len(white) != 1 || white[0] != "ok.example.com" {
		t.Fatalf("白名单内容异常: %v", white)
	}
	black, _ := repo.LoadList(rules.ListBlocklist)
	if len(black) != 1 {
		t.Fatalf("黑名单内容异常: %v", black)
	}

	if err := repo.DeleteListEntry(rules.ListWhitelist, "ok.example.com"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	white, _ = repo.LoadList(rules.ListWhitelist)
	if len(white) != 0 {
		t.Fatal("删除后仍有残留")
	}
}

func TestKVStoreQuotaAndEviction(t *testing.T) {
	kv := NewKVStore(newTestDB(t))
	kv.SetCapacity(3)

	for _, k := range []string{"a", "b", "c"} {
		if err := kv.Put(k, "v", 0); err != nil {
			t.Fatalf("写入 %s 失败: %v", k, err)
		}
	}
	// 超限：新键返回配额错误
	err := kv.Put("d", "v", 0)
	if !errx.Is(err, errx.CodeStorageQuota) {
		t.Fatalf("错误码异常: %v", err)
	}
	// 已存在的键不受配额影响
	if err := kv.Put("a", "v2", 0); err != nil {
		t.Fatalf("更新已有键失败: %v", err)
	}

	evicted, err := kv.EvictLRU()
	if err != nil {
		t.Fatalf("淘汰失败: %v", err)
	}
	if evicted != 3 {
		t.Fatalf("淘汰数 %d, want 3", evicted)
	}
	if err := kv.Put("d", "v", 0); err != nil {
		t.Fatalf("淘汰后写入失败: %v", err)
	}
}

func TestKVStoreTTL(t *testing.T) {
	kv := NewKVStore(newTestDB(t))

	if err := kv.Put("short", "v", time.Millisecond); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok, _ := kv.Get("short"); ok {
		t.Fatal("过期条目仍可读取")
	}

	if err := kv.Put("long", "v", time.Hour); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, ok, _ := kv.Get("long"); !ok {
		t.Fatal("未过期条目不可读取")
	}
}

func TestKVStoreClearPrefix(t *testing.T) {
	kv := NewKVStore(newTestDB(t))
	_ = kv.Put("session:a", "1", 0)
	_ = kv.Put("session:b", "2", 0)
	_ = kv.Put("history:c", "3", 0)

	if err := kv.ClearPrefix("session:"); err != nil {
		t.Fatalf("前缀清除失败: %v", err)
	}
	if _, ok, _ := kv.Get("session:a"); ok {
		t.Fatal("会话条目残留")
	}
	if _, ok, _ := kv.Get("history:c"); !ok {
		t.Fatal("前缀清除误删其他条目")
	}

	n, err := kv.Count()
	if err != nil || n != 1 {
		t.Fatalf("计数 %d err=%v", n, err)
	}
}

func TestEventRepoFlushAndQuery(t *testing.T) {
	db := newTestDB(t)
	repo := NewEventRepo(db)

	ruleID := model.RuleID("ad-domainLiteral-000")
	repo.Record(model.ThreatEvent{
		Timestamp: time.Now().UnixMilli(),
		Subject:   "https://googlesyndication.com/x",
		Verdict: model.Verdict{
			Category:    model.CategoryAd,
			Description: "已知广告域名",
			MatchedRule: &ruleID,
			Subject:     "https://googlesyndication.com/x",
		},
		Action: model.ActionBlockNav,
	})
	repo.Record(model.ThreatEvent{
		Timestamp: time.Now().UnixMilli(),
		Subject:   "https://bad.example.com/x",
		Verdict:   model.Verdict{Category: model.CategoryPhishing, Subject: "https://bad.example.com/x"},
		Action:    model.ActionBlockNav,
	})
	repo.Stop() // 停止前刷新缓冲

	records, total, err := repo.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("total=%d len=%d", total, len(records))
	}

	records, total, err = repo.Query(QueryOptions{Category: string(model.CategoryAd)})
	if err != nil || total != 1 {
		t.Fatalf("类别过滤 total=%d err=%v", total, err)
	}
	if records[0].RuleID == nil || *records[0].RuleID != string(ruleID) {
		t.Fatalf("规则 ID 往返异常: %v", records[0].RuleID)
	}
}

func TestEventRepoDiscardBuffer(t *testing.T) {
	repo := NewEventRepo(newTestDB(t))

	repo.Record(model.ThreatEvent{
		Timestamp: time.Now().UnixMilli(),
		Subject:   "x",
		Verdict:   model.Verdict{Category: model.CategoryAd, Subject: "x"},
		Action:    model.ActionHide,
	})
	repo.DiscardBuffer()
	repo.Stop()

	_, total, err := repo.Query(QueryOptions{})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if total != 0 {
		t.Fatalf("丢弃后仍落库 %d 条", total)
	}
}
