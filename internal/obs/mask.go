package obs

import (
	"net/url"
)

// MaskValue 对敏感值进行掩码处理
func MaskValue(v string) string {
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***" + v[len(v)-4:]
}

// MaskURL 隐私模式下输出日志时对 URL 脱敏：保留协议与主机，掩去路径与查询
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskValue(raw)
	}
	if u.Path == "" && u.RawQuery == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host + "/***"
}
