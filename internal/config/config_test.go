package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("空路径加载失败: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Observer.RescanSeconds != 30 {
		t.Fatalf("默认值异常: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("缺失文件应返回默认配置: %v", err)
	}
	if cfg.Observer.RescanSeconds != 30 {
		t.Fatalf("默认值异常: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: "2.0.0"
sqlite:
  db: /tmp/test.db
log:
  level: debug
observer:
  rescanSeconds: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入测试配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Version != "2.0.0" || cfg.Sqlite.Db != "/tmp/test.db" || cfg.Log.Level != "debug" {
		t.Fatalf("字段解析异常: %+v", cfg)
	}
	if cfg.Observer.RescanSeconds != 10 {
		t.Fatalf("扫描间隔 %d", cfg.Observer.RescanSeconds)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("observer:\n  rescanSeconds: -5\n"), 0o644); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Observer.RescanSeconds != 30 {
		t.Fatalf("非法值未回退: %d", cfg.Observer.RescanSeconds)
	}
}
