package errs

import "Conquest/modules/kit/errx"

// 游戏域错误码。对外语义稳定，接口层按 errx.Kind 映射状态码。
const (
	CodeInvalidArgument          errx.Code = "GAME_INVALID_ARGUMENT"
	CodePlayerNotFound           errx.Code = "GAME_PLAYER_NOT_FOUND"
	CodeCityNotFound             errx.Code = "GAME_CITY_NOT_FOUND"
	CodeNotCityOwner             errx.Code = "GAME_NOT_CITY_OWNER"
	CodeSelfAttack               errx.Code = "GAME_SELF_ATTACK"
	CodeAlreadyUnderConstruction errx.Code = "GAME_ALREADY_UNDER_CONSTRUCTION"
	CodeQueueFull                errx.Code = "GAME_QUEUE_FULL"
	CodeMaxLevelReached          errx.Code = "GAME_MAX_LEVEL_REACHED"
	CodeNotUnderConstruction     errx.Code = "GAME_NOT_UNDER_CONSTRUCTION"
	CodeAlreadyTraining          errx.Code = "GAME_ALREADY_TRAINING"
	CodeTargetOnCooldown         errx.Code = "GAME_TARGET_ON_COOLDOWN"
	CodeAlreadyClaimedToday      errx.Code = "GAME_ALREADY_CLAIMED_TODAY"
	CodeInsufficientResources    errx.Code = "GAME_INSUFFICIENT_RESOURCES"
	CodeInsufficientForces       errx.Code = "GAME_INSUFFICIENT_FORCES"
	CodeStorageFull              errx.Code = "GAME_STORAGE_FULL"
	CodeConsistencyFault         errx.Code = "GAME_CONSISTENCY_FAULT"
	CodePersistence              errx.Code = "GAME_PERSISTENCE"
)

var (
	ErrInvalidArgument = errx.NewValidation(CodeInvalidArgument, "invalid argument")
	ErrPlayerNotFound  = errx.NewValidation(CodePlayerNotFound, "player not found")
	ErrCityNotFound    = errx.NewValidation(CodeCityNotFound, "city not found")
	ErrNotCityOwner    = errx.NewValidation(CodeNotCityOwner, "city belongs to another player")
	ErrSelfAttack      = errx.NewValidation(CodeSelfAttack, "cannot attack your own city")

	ErrAlreadyUnderConstruction = errx.NewPrecondition(CodeAlreadyUnderConstruction, "building is already under construction")
	ErrQueueFull                = errx.NewPrecondition(CodeQueueFull, "construction queue is full")
	ErrMaxLevelReached          = errx.NewPrecondition(CodeMaxLevelReached, "building is at max level")
	ErrNotUnderConstruction     = errx.NewPrecondition(CodeNotUnderConstruction, "building is not under construction")
	ErrAlreadyTraining          = errx.NewPrecondition(CodeAlreadyTraining, "training queue is busy")
	ErrTargetOnCooldown         = errx.NewPrecondition(CodeTargetOnCooldown, "target city is protected")
	ErrAlreadyClaimedToday      = errx.NewPrecondition(CodeAlreadyClaimedToday, "daily reward already claimed")

	ErrInsufficientResources = errx.NewResource(CodeInsufficientResources, "insufficient resources")
	ErrInsufficientForces    = errx.NewResource(CodeInsufficientForces, "insufficient forces")
	ErrStorageFull           = errx.NewResource(CodeStorageFull, "not enough storage room")

	ErrConsistencyFault = errx.NewFault(CodeConsistencyFault, "consistency fault")
	ErrPersistence      = errx.NewFault(CodePersistence, "persistence failure")
)

// Invalid 生成带具体说明的校验错误。
func Invalid(format string, args ...any) *errx.Error {
	return ErrInvalidArgument.WithMsg(format, args...)
}

// Fault 生成带上下文的一致性故障。
func Fault(op string, cause error, data map[string]any) *errx.Error {
	return ErrConsistencyFault.WithData("op", op).WithDataMap(data).WithCause(cause)
}

// Persist 包装仓储层技术错误。
func Persist(op string, cause error, data map[string]any) error {
	if cause == nil {
		return nil
	}
	return ErrPersistence.WithData("op", op).WithDataMap(data).WithCause(cause)
}

// IsFault 是否是需要按系统错误记录的故障；非 errx 错误也算。
func IsFault(err error) bool {
	return err != nil && errx.KindOf(err) == errx.KindFault
}
