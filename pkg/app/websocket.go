package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pantrylabs/pantry-sync-service/global"
	"github.com/pantrylabs/pantry-sync-service/pkg/code"
	"github.com/pantrylabs/pantry-sync-service/pkg/metric"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/lxzan/gws"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type LogType string

const (
	WebSocketServerPingInterval         = 25
	WebSocketServerPingWait             = 40
	LogInfo                     LogType = "info"
	LogError                    LogType = "error"
	LogWarn                     LogType = "warn"
)

func log(t LogType, msg string, fields ...zap.Field) {
	if global.Logger == nil {
		return
	}
	if t == LogError {
		global.Logger.Error(msg, fields...)
	} else if t == LogWarn {
		global.Logger.Warn(msg, fields...)
	} else {
		global.Logger.Info(msg, fields...)
	}
}

// WebSocketMessage 一条入站消息，格式为 "Action|{json}"
type WebSocketMessage struct {
	Type string `json:"type"` // 操作类型，例如 "SyncPush"
	Data []byte `json:"data"` // 消息负载
}

type WebsocketServerConfig struct {
	GWSOption    gws.ServerOption
	PingInterval time.Duration
	PingWait     time.Duration
	// AuthTokenKey Token 解析密钥
	AuthTokenKey string
}

// WebsocketClient 存储每个 WebSocket 连接及其相关状态
type WebsocketClient struct {
	conn  *gws.Conn
	done  chan struct{}
	Ctx   *gin.Context
	Actor *ActorEntity
	// TraceID 升级请求携带的追踪 ID，连接关闭后 HTTP context 不再可用
	TraceID string
	// PantryID 当前订阅的库房，0 表示尚未订阅
	PantryID      int64
	PantryClients *ConnStorage
	SF            *singleflight.Group
}

// Context 升级请求的 context
func (c *WebsocketClient) Context() context.Context {
	return c.Ctx.Request.Context()
}

// BindAndValid 基于全局验证器的 WebSocket 版本参数绑定和验证
func (c *WebsocketClient) BindAndValid(data []byte, obj any) (bool, ValidErrors) {
	var errs ValidErrors

	if err := sonic.Unmarshal(data, obj); err != nil {
		errs = append(errs, &ValidError{
			Key:     "body",
			Message: "Invalid message format",
		})
		return false, errs
	}

	if err := global.Validator.Validate.Struct(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			v := c.Ctx.Value("trans")
			trans, _ := v.(ut.Translator)
			for _, validationErr := range validationErrors {
				msg := validationErr.Error()
				if trans != nil {
					msg = validationErr.Translate(trans)
				}
				errs = append(errs, &ValidError{
					Key:     validationErr.Field(),
					Message: msg,
				})
			}
		}
		return false, errs
	}
	return true, nil
}

// PingLoop 定期发送 Ping 消息
func (c *WebsocketClient) PingLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			log(LogInfo, "WebsocketServer Client Close Ping")
			return
		case <-ticker.C:
			if c.conn == nil {
				return
			}
			if err := c.conn.WritePing(nil); err != nil {
				log(LogError, "WebsocketServer Client Ping err", zap.Error(err))
				return
			}
		}
	}
}

// ToResponse 将结果转换为 JSON 格式并发送给客户端
func (c *WebsocketClient) ToResponse(codeObj *code.Code, action ...string) {
	var actionType string
	if len(action) > 0 {
		actionType = action[0]
	}
	if codeObj.HaveDetails() {
		details := strings.Join(codeObj.Details(), ",")
		c.send(actionType, ResDetailsResult{
			Code:    codeObj.Code(),
			Status:  codeObj.Status(),
			Msg:     codeObj.Lang.GetMessage(),
			Data:    codeObj.Data(),
			Details: details,
		}, false, false)
	} else if actionType != "" || codeObj.Code() > 200 || codeObj.HaveData() {
		c.send(actionType, ResResult{
			Code:   codeObj.Code(),
			Status: codeObj.Status(),
			Msg:    codeObj.Lang.GetMessage(),
			Data:   codeObj.Data(),
		}, false, false)
	}
	codeObj.Reset()
}

// BroadcastResponse 将结果广播给同库房的所有客户端
// options[0] 为是否排除自己，options[1] 为动作类型
func (c *WebsocketClient) BroadcastResponse(codeObj *code.Code, options ...any) {
	var actionType string
	if len(options) > 1 {
		actionType = options[1].(string)
	}
	excludeSelf := false
	if len(options) > 0 {
		excludeSelf = options[0].(bool)
	}

	c.send(actionType, ResResult{
		Code:   codeObj.Code(),
		Status: codeObj.Status(),
		Msg:    codeObj.Lang.GetMessage(),
		Data:   codeObj.Data(),
	}, true, excludeSelf)

	codeObj.Reset()
}

func (c *WebsocketClient) send(actionType string, content any, isBroadcast bool, isExcludeSelf bool) {
	responseBytes, _ := sonic.Marshal(content)
	if actionType != "" {
		responseBytes = []byte(fmt.Sprintf(`%s|%s`, actionType, string(responseBytes)))
	}
	if isBroadcast {
		c.broadcast(responseBytes, isExcludeSelf)
	} else {
		c.message(responseBytes)
	}
}

func (c *WebsocketClient) message(payload []byte) {
	_ = c.conn.WriteMessage(gws.OpcodeText, payload)
}

func (c *WebsocketClient) broadcast(payload []byte, isExcludeSelf bool) {
	if c.PantryClients == nil {
		return
	}

	var b = gws.NewBroadcaster(gws.OpcodeText, payload)
	defer b.Close()

	for _, pc := range *c.PantryClients {
		if pc.conn == nil {
			continue
		}
		if isExcludeSelf && pc.conn == c.conn {
			continue
		}
		_ = b.Broadcast(pc.conn)
	}
}

// ------------------------------------> WebsocketServer

type ConnStorage = map[*gws.Conn]*WebsocketClient

type WebsocketServer struct {
	handlers map[string]func(*WebsocketClient, *WebSocketMessage)
	// actorDataHandler 鉴权时验证操作者有效性
	actorDataHandler func(*WebsocketClient, int64) (*ActorSelectEntity, error)
	clients          ConnStorage
	pantryClients    map[int64]ConnStorage
	mu               sync.Mutex
	up               *gws.Upgrader
	config           *WebsocketServerConfig
}

func NewWebsocketServer(c WebsocketServerConfig) *WebsocketServer {
	if c.PingInterval == 0 {
		c.PingInterval = WebSocketServerPingInterval
	}
	if c.PingWait == 0 {
		c.PingWait = WebSocketServerPingWait
	}
	return &WebsocketServer{
		handlers:      make(map[string]func(*WebsocketClient, *WebSocketMessage)),
		clients:       make(ConnStorage),
		pantryClients: make(map[int64]ConnStorage),
		config:        &c,
	}
}

func (w *WebsocketServer) Upgrade() {
	w.up = gws.NewUpgrader(w, &w.config.GWSOption)
}

func (w *WebsocketServer) Run() gin.HandlerFunc {
	return func(c *gin.Context) {
		w.Upgrade()
		socket, err := w.up.Upgrade(c.Writer, c.Request)
		if err != nil {
			log(LogError, "WebsocketServer Start err", zap.Error(err))
			return
		}
		client := &WebsocketClient{conn: socket, done: make(chan struct{}), Ctx: c, SF: new(singleflight.Group)}
		if id, exists := c.Get("trace_id"); exists {
			client.TraceID, _ = id.(string)
		}
		w.AddClient(client)
		log(LogInfo, "WebsocketServer Start", zap.String("type", "ReadLoop"))
		go socket.ReadLoop()
	}
}

func (w *WebsocketServer) Use(action string, handler func(*WebsocketClient, *WebSocketMessage)) {
	w.handlers[action] = handler
}

// ActorDataSelectUse 注册操作者有效性验证回调
func (w *WebsocketServer) ActorDataSelectUse(handler func(*WebsocketClient, int64) (*ActorSelectEntity, error)) {
	w.actorDataHandler = handler
}

func (w *WebsocketServer) authFail(c *WebsocketClient, err error) {
	log(LogError, "WebsocketServer Authorization FAILD", zap.Error(err))
	c.ToResponse(code.ErrorInvalidAuthToken, "Authorization")
	time.Sleep(2 * time.Second)
	c.conn.WriteClose(1000, []byte("AuthorizationFaild"))
}

// Authorization 处理鉴权消息，负载为 Token 字符串
func (w *WebsocketServer) Authorization(c *WebsocketClient, msg *WebSocketMessage) {
	actor, err := ParseTokenWithKey(string(msg.Data), w.config.AuthTokenKey)
	if err != nil {
		w.authFail(c, err)
		return
	}

	uid, err := strconv.ParseInt(actor.ID, 10, 64)
	if err != nil {
		w.authFail(c, err)
		return
	}

	// 操作者有效性强制验证
	actorSelect, err := w.actorDataHandler(c, uid)
	if actorSelect == nil || err != nil {
		w.authFail(c, fmt.Errorf("actor not exist: %w", err))
		return
	}

	actor.Nickname = actorSelect.Nickname

	log(LogInfo, "WebsocketServer Authorization", zap.String("uid", actor.ID), zap.String("Nickname", actor.Nickname))
	c.Actor = actor
	c.ToResponse(code.Success, "Authorization")
	go c.PingLoop(w.config.PingInterval)
}

// BroadcastToPantry 向库房广播组的全部连接推送，HTTP 侧触发的变更走这里
func (w *WebsocketServer) BroadcastToPantry(pantryID int64, codeObj *code.Code, action string) {
	w.mu.Lock()
	clients := w.pantryClients[pantryID]
	conns := make([]*gws.Conn, 0, len(clients))
	for conn := range clients {
		conns = append(conns, conn)
	}
	w.mu.Unlock()

	if len(conns) == 0 {
		codeObj.Reset()
		return
	}

	responseBytes, _ := sonic.Marshal(ResResult{
		Code:   codeObj.Code(),
		Status: codeObj.Status(),
		Msg:    codeObj.Lang.GetMessage(),
		Data:   codeObj.Data(),
	})
	if action != "" {
		responseBytes = []byte(fmt.Sprintf(`%s|%s`, action, string(responseBytes)))
	}

	var b = gws.NewBroadcaster(gws.OpcodeText, responseBytes)
	defer b.Close()
	for _, conn := range conns {
		_ = b.Broadcast(conn)
	}

	codeObj.Reset()
}

// JoinPantry 将已鉴权客户端加入库房广播组
func (w *WebsocketServer) JoinPantry(c *WebsocketClient, pantryID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c.PantryID != 0 && c.PantryID != pantryID {
		delete(w.pantryClients[c.PantryID], c.conn)
	}

	if w.pantryClients[pantryID] == nil {
		w.pantryClients[pantryID] = make(ConnStorage)
	}
	w.pantryClients[pantryID][c.conn] = c
	c.PantryID = pantryID

	pantryClients := w.pantryClients[pantryID]
	c.PantryClients = &pantryClients

	log(LogInfo, "WebsocketServer Pantry Join",
		zap.String("uid", c.Actor.ID),
		zap.Int64("pantry", pantryID),
		zap.Int("Count", len(pantryClients)))
}

func (w *WebsocketServer) GetClient(conn *gws.Conn) *WebsocketClient {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clients[conn]
}

func (w *WebsocketServer) AddClient(c *WebsocketClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[c.conn] = c
}

func (w *WebsocketServer) RemoveClient(conn *gws.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.clients, conn)
}

func (w *WebsocketServer) removePantryClient(c *WebsocketClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c.PantryID != 0 {
		delete(w.pantryClients[c.PantryID], c.conn)
	}
	log(LogInfo, "WebsocketServer Client Remove", zap.Int("clientCount", len(w.clients)))
}

func (w *WebsocketServer) OnOpen(conn *gws.Conn) {
	log(LogInfo, "WebsocketServer Client Connect", zap.Int("Count", len(w.clients)))
	metric.WSConnections.Inc()
	_ = conn.SetDeadline(time.Now().Add(w.config.PingWait * time.Second))
}

func (w *WebsocketServer) OnClose(conn *gws.Conn, err error) {
	c := w.GetClient(conn)
	w.RemoveClient(conn)
	metric.WSConnections.Dec()

	if c != nil && c.Actor != nil {
		c.done <- struct{}{}
		log(LogInfo, "WebsocketServer Actor Leave", zap.Int64("uid", c.Actor.UID))
		w.removePantryClient(c)
	}

	log(LogInfo, "WebsocketServer Client Leave", zap.Int("Count", len(w.clients)))
}

func (w *WebsocketServer) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(w.config.PingWait * time.Second))
	_ = socket.WritePong(nil)
}

func (w *WebsocketServer) OnPong(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(w.config.PingWait * time.Second))
}

func (w *WebsocketServer) OnMessage(conn *gws.Conn, message *gws.Message) {
	defer message.Close()
	if message.Opcode != gws.OpcodeText {
		return
	}
	if message.Data.String() == "close" {
		conn.WriteClose(1000, []byte("ClientClose"))
		return
	}

	c := w.GetClient(conn)

	messageStr := message.Data.String()
	index := strings.Index(messageStr, "|")

	var msg WebSocketMessage
	if index != -1 {
		msg.Type = messageStr[:index]
		msg.Data = []byte(messageStr[index+1:])
	} else {
		log(LogError, "WebsocketServer OnMessage", zap.String("type", "Illegal message type"))
		return
	}

	if msg.Type == "Authorization" {
		w.Authorization(c, &msg)
		return
	}

	// 验证操作者是否已鉴权
	if c.Actor == nil {
		c.ToResponse(code.ErrorNotAuthToken)
		return
	}

	handler, exists := w.handlers[msg.Type]
	if exists {
		log(LogInfo, "WebsocketServer OnMessage", zap.String("Type", msg.Type))
		handler(c, &msg)
	} else {
		log(LogError, "WebsocketServer OnMessage", zap.String("msg", "Unknown message type"))
	}
}
