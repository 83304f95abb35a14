package code

// 成功码
var (
	Success         = NewSuss(200, lang{en: "Success", zh_cn: "成功"})
	SuccessNoChange = NewSuss(201, lang{en: "No change", zh_cn: "无变更"})
)

// 通用错误码
var (
	ErrorInvalidParams     = NewError(400001, lang{en: "Invalid request parameters", zh_cn: "请求参数错误"})
	ErrorRequestTimeout    = NewError(400002, lang{en: "Request timeout", zh_cn: "请求超时"})
	ErrorTooManyRequests   = NewError(400003, lang{en: "Too many requests", zh_cn: "请求过于频繁"})
	ErrorNotFoundAPI       = NewError(400004, lang{en: "API not found", zh_cn: "接口不存在"})
	ErrorServerInternal    = NewError(500001, lang{en: "Internal server error", zh_cn: "服务内部错误"})
	ErrorDBQuery           = NewError(500002, lang{en: "Database query failed", zh_cn: "数据库查询失败"})
	ErrorDurabilityFailure = NewError(500003, lang{en: "Log store write failed", zh_cn: "日志存储写入失败"})
)

// 认证相关错误码
var (
	ErrorNotAuthToken        = NewError(401001, lang{en: "Auth token is missing", zh_cn: "缺少认证令牌"})
	ErrorInvalidAuthToken    = NewError(401002, lang{en: "Auth token is invalid", zh_cn: "认证令牌无效"})
	ErrorActorRegisterFailed = NewError(401003, lang{en: "Actor register failed", zh_cn: "客户端注册失败"})
	ErrorActorLoginFailed    = NewError(401004, lang{en: "Actor login failed", zh_cn: "客户端登录失败"})
	ErrorRegisterDisabled    = NewError(401005, lang{en: "Actor register is disabled", zh_cn: "客户端注册已关闭"})
)

// 同步相关错误码
var (
	ErrorUnknownEntity    = NewError(420001, lang{en: "Unknown entity", zh_cn: "实体不存在"})
	ErrorFutureVersion    = NewError(420002, lang{en: "Record base version is ahead of authority", zh_cn: "记录基线版本超前于服务端"})
	ErrorConflictRejected = NewError(420003, lang{en: "Conflict: record rejected, rebase required", zh_cn: "冲突: 记录被拒绝, 需要基于最新版本重新提交"})
	ErrorPushFailed       = NewError(420004, lang{en: "Push failed", zh_cn: "推送失败"})
	ErrorPullFailed       = NewError(420005, lang{en: "Pull failed", zh_cn: "拉取失败"})
	ErrorInvalidPolicy    = NewError(420006, lang{en: "Unrecognized conflict policy", zh_cn: "未识别的冲突策略"})
	ErrorPantryNotFound   = NewError(420007, lang{en: "Pantry not found", zh_cn: "清单不存在"})
	ErrorClientOutdated   = NewError(420008, lang{en: "Client version is no longer supported", zh_cn: "客户端版本过低"})
)
