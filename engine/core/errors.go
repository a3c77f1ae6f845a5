package core

import (
	"errors"
)

var (
	ErrNoPhysicalDevices = errors.New("couldn't find any physical devices")
	ErrNoSuitableDevice  = errors.New("no physical device meets the requirements")
	ErrModelImport       = errors.New("failed to import model")
	ErrUnknown           = errors.New("unknown")
)
