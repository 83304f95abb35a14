package service

import (
	"context"

	"github.com/pantrylabs/pantry-sync-service/internal/domain"
	"github.com/pantrylabs/pantry-sync-service/internal/dto"
	"github.com/pantrylabs/pantry-sync-service/pkg/app"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrRegisterDisabled 注册入口被配置关闭
	ErrRegisterDisabled = errors.New("register is disabled")
	// ErrEmailExists 邮箱已被占用
	ErrEmailExists = errors.New("email already registered")
	// ErrPasswordWrong 邮箱或密码不匹配
	ErrPasswordWrong = errors.New("email or password mismatch")
)

// ActorService 操作者账号服务
type ActorService interface {
	// Register 注册账号，注册开关关闭时返回 ErrRegisterDisabled
	Register(ctx context.Context, params *dto.ActorRegisterRequest) (*dto.ActorDTO, error)

	// Login 校验密码并签发访问令牌
	Login(ctx context.Context, params *dto.ActorLoginRequest, ip string) (*dto.ActorDTO, error)

	// Get 获取操作者信息
	Get(ctx context.Context, uid int64) (*dto.ActorDTO, error)
}

type actorService struct {
	actorRepo domain.ActorRepository
	tokens    app.TokenManager
	config    *ActorServiceConfig
}

// NewActorService 创建 ActorService 实例
func NewActorService(actorRepo domain.ActorRepository, tokens app.TokenManager, cfg *ActorServiceConfig) ActorService {
	return &actorService{
		actorRepo: actorRepo,
		tokens:    tokens,
		config:    cfg,
	}
}

func (s *actorService) Register(ctx context.Context, params *dto.ActorRegisterRequest) (*dto.ActorDTO, error) {
	if s.config == nil || !s.config.RegisterIsEnable {
		return nil, ErrRegisterDisabled
	}

	if _, err := s.actorRepo.GetByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	nickname := params.Nickname
	if nickname == "" {
		nickname = params.Email
	}

	actor, err := s.actorRepo.Create(ctx, &domain.Actor{
		Email:    params.Email,
		Nickname: nickname,
		Password: string(hash),
	})
	if err != nil {
		return nil, err
	}

	return toActorDTO(actor), nil
}

func (s *actorService) Login(ctx context.Context, params *dto.ActorLoginRequest, ip string) (*dto.ActorDTO, error) {
	actor, err := s.actorRepo.GetByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrPasswordWrong
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(actor.Password), []byte(params.Password)); err != nil {
		return nil, ErrPasswordWrong
	}

	token, err := s.tokens.Generate(actor.UID, actor.Nickname, ip)
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}

	out := toActorDTO(actor)
	out.Token = token
	return out, nil
}

func (s *actorService) Get(ctx context.Context, uid int64) (*dto.ActorDTO, error) {
	actor, err := s.actorRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return toActorDTO(actor), nil
}

func toActorDTO(a *domain.Actor) *dto.ActorDTO {
	return &dto.ActorDTO{
		UID:      a.UID,
		Email:    a.Email,
		Nickname: a.Nickname,
		Avatar:   a.Avatar,
	}
}
