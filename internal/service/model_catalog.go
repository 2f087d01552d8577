package service

// ModelInfo 可选模型信息
type ModelInfo struct {
	ID   string `json:"id"`   // 模型标识，随推理请求传给模型服务
	Name string `json:"name"` // 展示名称
}

// ModelCatalog 可选模型目录
// 目录是静态的，切换模型时用它校验模型标识
type ModelCatalog struct {
	models []ModelInfo
}

// NewModelCatalog 创建模型目录
// defaultModel 不在内置列表中时会补充进去
func NewModelCatalog(defaultModel string) *ModelCatalog {
	models := []ModelInfo{
		{ID: "gpt-4-mini", Name: "GPT-4 Mini"},
		{ID: "gpt-4", Name: "GPT-4"},
		{ID: "claude-sonnet", Name: "Claude Sonnet"},
		{ID: "deepseek-chat", Name: "DeepSeek Chat"},
	}

	c := &ModelCatalog{models: models}
	if defaultModel != "" && !c.Has(defaultModel) {
		c.models = append(c.models, ModelInfo{ID: defaultModel, Name: defaultModel})
	}
	return c
}

// List 返回全部可选模型
func (c *ModelCatalog) List() []ModelInfo {
	return c.models
}

// Has 判断模型标识是否存在
func (c *ModelCatalog) Has(id string) bool {
	for _, m := range c.models {
		if m.ID == id {
			return true
		}
	}
	return false
}
