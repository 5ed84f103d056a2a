package service

import "errors"

var (
	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDependencyViolation 前置条目未完成
	ErrDependencyViolation = errors.New("dependency violation")
	// ErrInvalidTransition 非法状态流转
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTransactionFailed 事务提交失败
	ErrTransactionFailed = errors.New("transaction failed")
)
