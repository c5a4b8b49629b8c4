// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pointer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/ventigrow/pkg/pointer"
)

func TestPointerHelpers(t *testing.T) {
	assert.Equal(t, 7, *pointer.To(7))
	assert.Equal(t, "", pointer.Val[string](nil))
	assert.Equal(t, "x", pointer.Val(pointer.To("x")))
	assert.Nil(t, pointer.NilIfEmpty(""))
	assert.Equal(t, "x", *pointer.NilIfEmpty("x"))
}
