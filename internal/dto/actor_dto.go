package dto

// ActorRegisterRequest 注册请求参数
type ActorRegisterRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6,max=64"`
	Nickname string `json:"nickname" form:"nickname" binding:"max=64"`
}

// ActorLoginRequest 登录请求参数
type ActorLoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// ActorDTO 操作者数据传输对象
type ActorDTO struct {
	UID      int64  `json:"uid"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Token    string `json:"token,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}
