package main

import (
	stdtesting "testing"

	"github.com/stretchr/testify/assert"

	"github.com/synergyos/synergyos/internal/app"
	_ "github.com/synergyos/synergyos/testing"
)

func TestMainReturnsInTestMode(t *stdtesting.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	main()
}
