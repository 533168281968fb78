package hubauth

// Route 是 (路径模式, handler, 可选参数) 三元组；Args 中的 "url" 视为站内链接。
type Route[H any] struct {
	Pattern string
	Handler H
	Args    map[string]string
}

// Prefixer 为站内路径加上代理前缀，*Adapter 实现该接口。
type Prefixer interface {
	AddRemapURLPrefix(url string) string
}

// AddRemapURLPrefix 为路径加上 remap_url 前缀；根路径映射为 "<prefix>/?"，尾部斜杠可选。
func (a *Adapter) AddRemapURLPrefix(url string) string {
	if url == "/" {
		return a.settings.RemapURL + "/?"
	}
	return a.settings.RemapURL + url
}

// TransformHandler 改写路径模式与 Args["url"]，其它字段原样保留；Args 以副本形式返回。
func TransformHandler[H any](p Prefixer, route Route[H]) Route[H] {
	transformed := Route[H]{
		Pattern: p.AddRemapURLPrefix(route.Pattern),
		Handler: route.Handler,
	}
	if route.Args != nil {
		args := make(map[string]string, len(route.Args))
		for key, value := range route.Args {
			args[key] = value
		}
		if target, ok := args["url"]; ok {
			args["url"] = p.AddRemapURLPrefix(target)
		}
		transformed.Args = args
	}
	return transformed
}
