package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mogakko-hub/mogakko-bot/pkg/timeutil"
)

func TestRenderFirstAttendance(t *testing.T) {
	at := timeutil.DateTime(2026, 3, 2, 19, 15, 0)
	msg := RenderFirstAttendance(123456789, at)

	assert.Equal(t, KindFirstAttendance, msg.Kind)
	assert.Contains(t, msg.Text, "<@123456789>")
	assert.Contains(t, msg.Text, "첫 출석")
	assert.Contains(t, msg.Text, "2026년 3월 2일")
}

func TestRenderWindowOpen(t *testing.T) {
	withPeople := RenderWindowOpen(4)
	assert.Equal(t, KindWindowOpen, withPeople.Kind)
	assert.Contains(t, withPeople.Text, "4명")

	empty := RenderWindowOpen(0)
	assert.Contains(t, empty.Text, "시작")
	assert.NotContains(t, empty.Text, "0명")
}

func TestRenderWindowClose(t *testing.T) {
	withPeople := RenderWindowClose(2)
	assert.Equal(t, KindWindowClose, withPeople.Kind)
	assert.Contains(t, withPeople.Text, "2명")

	empty := RenderWindowClose(0)
	assert.Contains(t, empty.Text, "끝")
	assert.NotContains(t, empty.Text, "0명")
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "모각코 준비중...", StatusText(0))
	assert.Equal(t, "3명과 모여서 각자 코딩 중...", StatusText(3))
}
