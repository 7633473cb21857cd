package model

// AllModels 返回所有需要迁移的数据库模型对象
// 新增表时，只需要在这里添加即可；生产环境的表结构以 migrations/ 为准
func AllModels() []interface{} {
	return []interface{}{
		&LedgerEntry{},
		&WebhookEvent{},
		&UserSetting{},
		&ExchangeRate{},
		&OutboxMessage{},
	}
}
