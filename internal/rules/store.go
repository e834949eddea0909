package rules

import (
	"fmt"
	"strings"
	"sync"

	"umbra/internal/logger"
	"umbra/pkg/errx"
	"umbra/pkg/model"
	"umbra/pkg/rulespec"
)

// Persister 规则与名单的持久化能力，由存储层实现；为 nil 时仅驻留内存
type Persister interface {
	SaveCustomRule(r rulespec.Rule) error
	DeleteCustomRule(id model.RuleID) error
	SaveListEntry(list string, domain string) error
	DeleteListEntry(list string, domain string) error
}

// 名单表名
const (
	ListWhitelist = "whitelist"
	ListBlocklist = "blocklist"
)

// scanOrder 有序扫描的类别优先级，固定不可调整
var scanOrder = []model.Category{
	model.CategoryAd,
	model.CategoryTracker,
	model.CategoryMalware,
	model.CategoryPhishing,
}

// Store 规则库：内置规则、自定义规则与黑白名单
type Store struct {
	mu         sync.RWMutex
	builtin    []rulespec.Rule
	custom     []rulespec.Rule
	domainTab  map[string]*rulespec.Rule // 域名字面量 O(1) 查找表
	whitelist  map[string]struct{}
	blocklist  map[string]struct{}
	registered bool
	persist    Persister
	log        logger.Logger
}

// NewStore 创建规则库实例
func NewStore(p Persister, l logger.Logger) *Store {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Store{
		domainTab: make(map[string]*rulespec.Rule),
		whitelist: make(map[string]struct{}),
		blocklist: make(map[string]struct{}),
		persist:   p,
		log:       l,
	}
}

// RegisterBuiltin 注册内置规则，仅执行一次；非法模式立即失败并指明模式
func (s *Store) RegisterBuiltin(rules []rulespec.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered {
		return nil
	}
	compiled := make([]rulespec.Rule, len(rules))
	copy(compiled, rules)
	for i := range compiled {
		if err := compiled[i].Compile(); err != nil {
			return errx.Wrap(errx.CodeInvalidPattern, err,
				fmt.Sprintf("内置规则注册失败: %q", compiled[i].Pattern))
		}
	}
	s.builtin = compiled
	s.registered = true
	s.rebuildDomainTable()
	s.log.Info("内置规则注册完成", "count", len(compiled))
	return nil
}

// AddCustom 编译并追加一条自定义规则，同步持久化
func (s *Store) AddCustom(pattern string, kind rulespec.RuleKind, category model.Category, description string) (rulespec.Rule, error) {
	r, err := rulespec.NewCustomRule(pattern, kind, category, description)
	if err != nil {
		return rulespec.Rule{}, err
	}
	s.mu.Lock()
	s.custom = append(s.custom, r)
	s.rebuildDomainTable()
	s.mu.Unlock()

	if s.persist != nil {
		if perr := s.persist.SaveCustomRule(r); perr != nil {
			s.log.Err(perr, "自定义规则持久化失败", "rule", string(r.ID))
		}
	}
	s.log.Info("添加自定义规则", "rule", string(r.ID), "category", string(category))
	return r, nil
}

// RemoveCustom 移除自定义规则，不存在时为空操作
func (s *Store) RemoveCustom(id model.RuleID) {
	s.mu.Lock()
	removed := false
	for i := range s.custom {
		if s.custom[i].ID == id {
			s.custom = append(s.custom[:i], s.custom[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.rebuildDomainTable()
	}
	s.mu.Unlock()

	if removed && s.persist != nil {
		if err := s.persist.DeleteCustomRule(id); err != nil {
			s.log.Err(err, "自定义规则删除持久化失败", "rule", string(id))
		}
	}
}

// LoadCustom 从持久化层恢复自定义规则，替换现有集合
func (s *Store) LoadCustom(rules []rulespec.Rule) error {
	compiled := make([]rulespec.Rule, len(rules))
	copy(compiled, rules)
	for i := range compiled {
		if err := compiled[i].Compile(); err != nil {
			return err
		}
		compiled[i].Origin = rulespec.OriginCustom
	}
	s.mu.Lock()
	s.custom = compiled
	s.rebuildDomainTable()
	s.mu.Unlock()
	return nil
}

// AllRules 返回规则快照；给定类别时仅返回该类别，类别层内保持插入顺序
func (s *Store) AllRules(categories ...model.Category) []rulespec.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rulespec.Rule
	match := func(c model.Category) bool {
		if len(categories) == 0 {
			return true
		}
		for _, want := range categories {
			if c == want {
				return true
			}
		}
		return false
	}
	for _, r := range s.builtin {
		if match(r.Category) {
			out = append(out, r)
		}
	}
	for _, r := range s.custom {
		if match(r.Category) {
			out = append(out, r)
		}
	}
	return out
}

// CustomRules 返回自定义规则快照
func (s *Store) CustomRules() []rulespec.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]rulespec.Rule(nil), s.custom...)
}

// ScanOrdered 按固定类别优先级逐条评估规则，返回首个命中；
// 给定类别集时仅评估这些类别，优先级顺序不变
func (s *Store) ScanOrdered(host, rawURL string, cats ...model.Category) (*rulespec.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enabled := func(c model.Category) bool {
		if len(cats) == 0 {
			return true
		}
		for _, want := range cats {
			if c == want {
				return true
			}
		}
		return false
	}
	for _, cat := range scanOrder {
		if !enabled(cat) {
			continue
		}
		for i := range s.builtin {
			r := &s.builtin[i]
			if r.Category == cat && r.Matches(host, rawURL) {
				return r, true
			}
		}
		for i := range s.custom {
			r := &s.custom[i]
			if r.Category == cat && r.Matches(host, rawURL) {
				return r, true
			}
		}
	}
	return nil, false
}

// DomainLookup 域名字面量表 O(1) 查找
func (s *Store) DomainLookup(host string) (*rulespec.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.domainTab[host]
	return r, ok
}

// rebuildDomainTable 重建域名查找表，调用方需持有写锁
func (s *Store) rebuildDomainTable() {
	tab := make(map[string]*rulespec.Rule, len(s.domainTab))
	for i := range s.builtin {
		if s.builtin[i].Kind == rulespec.KindDomainLiteral {
			if _, exists := tab[s.builtin[i].Pattern]; !exists {
				tab[s.builtin[i].Pattern] = &s.builtin[i]
			}
		}
	}
	for i := range s.custom {
		if s.custom[i].Kind == rulespec.KindDomainLiteral {
			if _, exists := tab[s.custom[i].Pattern]; !exists {
				tab[s.custom[i].Pattern] = &s.custom[i]
			}
		}
	}
	s.domainTab = tab
}

// ========== 黑白名单 ==========
// 不变式：一个域名至多存在于黑白名单之一，加入一侧即从另一侧移除。

// AddToWhitelist 加入白名单，并原子地从黑名单移除
func (s *Store) AddToWhitelist(domain string) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return
	}
	s.mu.Lock()
	_, wasBlocked := s.blocklist[domain]
	delete(s.blocklist, domain)
	s.whitelist[domain] = struct{}{}
	s.mu.Unlock()

	if s.persist != nil {
		if wasBlocked {
			if err := s.persist.DeleteListEntry(ListBlocklist, domain); err != nil {
				s.log.Err(err, "黑名单移除持久化失败", "domain", domain)
			}
		}
		if err := s.persist.SaveListEntry(ListWhitelist, domain); err != nil {
			s.log.Err(err, "白名单持久化失败", "domain", domain)
		}
	}
}

// RemoveFromWhitelist 从白名单移除，不存在时为空操作
func (s *Store) RemoveFromWhitelist(domain string) {
	domain = normalizeDomain(domain)
	s.mu.Lock()
	_, existed := s.whitelist[domain]
	delete(s.whitelist, domain)
	s.mu.Unlock()
	if existed && s.persist != nil {
		if err := s.persist.DeleteListEntry(ListWhitelist, domain); err != nil {
			s.log.Err(err, "白名单移除持久化失败", "domain", domain)
		}
	}
}

// AddToBlocklist 加入黑名单，并原子地从白名单移除
func (s *Store) AddToBlocklist(domain string) {
	domain = normalizeDomain(domain)
	if domain == "" {
		return
	}
	s.mu.Lock()
	_, wasAllowed := s.whitelist[domain]
	delete(s.whitelist, domain)
	s.blocklist[domain] = struct{}{}
	s.mu.Unlock()

	if s.persist != nil {
		if wasAllowed {
			if err := s.persist.DeleteListEntry(ListWhitelist, domain); err != nil {
				s.log.Err(err, "白名单移除持久化失败", "domain", domain)
			}
		}
		if err := s.persist.SaveListEntry(ListBlocklist, domain); err != nil {
			s.log.Err(err, "黑名单持久化失败", "domain", domain)
		}
	}
}

// RemoveFromBlocklist 从黑名单移除，不存在时为空操作
func (s *Store) RemoveFromBlocklist(domain string) {
	domain = normalizeDomain(domain)
	s.mu.Lock()
	_, existed := s.blocklist[domain]
	delete(s.blocklist, domain)
	s.mu.Unlock()
	if existed && s.persist != nil {
		if err := s.persist.DeleteListEntry(ListBlocklist, domain); err != nil {
			s.log.Err(err, "黑名单移除持久化失败", "domain", domain)
		}
	}
}

// IsWhitelisted 判断主机名是否被白名单覆盖（精确或父域）
func (s *Store) IsWhitelisted(host string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchList(s.whitelist, host)
}

// IsBlocklisted 判断主机名是否被黑名单覆盖（精确或父域）
func (s *Store) IsBlocklisted(host string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return matchList(s.blocklist, host)
}

// WhitelistEntries 返回白名单快照
func (s *Store) WhitelistEntries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.whitelist)
}

// BlocklistEntries 返回黑名单快照
func (s *Store) BlocklistEntries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setToSlice(s.blocklist)
}

// LoadLists 从持久化层恢复黑白名单，黑白冲突时白名单优先
func (s *Store) LoadLists(whitelist, blocklist []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist = make(map[string]struct{}, len(whitelist))
	s.blocklist = make(map[string]struct{}, len(blocklist))
	for _, d := range blocklist {
		if d = normalizeDomain(d); d != "" {
			s.blocklist[d] = struct{}{}
		}
	}
	for _, d := range whitelist {
		if d = normalizeDomain(d); d != "" {
			delete(s.blocklist, d)
			s.whitelist[d] = struct{}{}
		}
	}
}

// matchList 名单匹配：精确命中或任一父域命中
func matchList(set map[string]struct{}, host string) bool {
	host = normalizeDomain(host)
	if host == "" {
		return false
	}
	if _, ok := set[host]; ok {
		return true
	}
	for i := strings.Index(host, "."); i >= 0; i = strings.Index(host, ".") {
		host = host[i+1:]
		if _, ok := set[host]; ok {
			return true
		}
	}
	return false
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(d), "."))
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
