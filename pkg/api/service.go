package api

import (
	"time"

	"umbra/internal/service"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// Service 引擎对外能力。UI 协作方只依赖该接口
type Service interface {
	BeforeNavigate(rawURL string) bool
	ClassifyURL(rawURL string) model.Verdict
	ClassifyElement(el model.ElementInput) model.Verdict
	SubmitMutations(batch model.MutationBatch) bool

	AddCustomFilter(pattern string, kind rulespec.RuleKind, category model.Category, description string) (rulespec.Rule, error)
	RemoveCustomFilter(id model.RuleID)
	AddToWhitelist(domain string)
	RemoveFromWhitelist(domain string)
	AddToBlocklist(domain string)
	RemoveFromBlocklist(domain string)

	SetAdBlock(on bool)
	SetSecurity(on bool)
	SetTrackingProtection(on bool)
	SetHTTPSUpgrade(on bool)

	GetStatistics() model.Statistics
	ExportLog() rulespec.ExportedLog
	ExportConfig() rulespec.ExportedConfig
	ImportConfig(cfg rulespec.ExportedConfig) error
	PutArtifact(key, value string, ttl time.Duration) error

	EnterPrivate()
	ExitPrivate()
	IsPrivate() bool
	OnWindowHidden()
	Teardown()
}

// NewService 创建并返回引擎实例
func NewService(opts service.Options) (Service, error) {
	return service.New(opts)
}
