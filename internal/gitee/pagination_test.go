package gitee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNextLink(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "next and last relations",
			header: `<https://gitee.com/api/v5/repos/o/r/issues?page=2>; rel="next", <https://gitee.com/api/v5/repos/o/r/issues?page=9>; rel="last"`,
			want:   "https://gitee.com/api/v5/repos/o/r/issues?page=2",
		},
		{
			name:   "only prev and first",
			header: `<https://gitee.com/api/v5/repos/o/r/issues?page=1>; rel="prev", <https://gitee.com/api/v5/repos/o/r/issues?page=1>; rel="first"`,
			want:   "",
		},
		{
			name:   "empty header",
			header: "",
			want:   "",
		},
		{
			name:   "next preserves query parameters",
			header: `<https://gitee.com/api/v5/repos/o/r/pulls?state=all&page=3&per_page=100>; rel="next"`,
			want:   "https://gitee.com/api/v5/repos/o/r/pulls?state=all&page=3&per_page=100",
		},
		{
			name:   "malformed header",
			header: "not a link header",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNextLink(tt.header))
		})
	}
}
