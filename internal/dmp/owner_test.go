package dmp

import (
	"testing"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func affiliated(ror string) *v1.Affiliation {
	if ror == "" {
		return nil
	}
	return &v1.Affiliation{AffiliationID: &v1.Identifier{Type: "ror", Identifier: ror}}
}

func TestOwnerOrg(t *testing.T) {
	tests := []struct {
		name         string
		contact      string
		contributors []string
		want         string
		wantErr      bool
	}{
		{name: "contact wins", contact: rorX, contributors: []string{rorY, rorY}, want: rorX},
		{name: "majority", contributors: []string{rorY, rorZ, rorY}, want: rorY},
		{name: "tie goes to first seen", contributors: []string{rorZ, rorY, rorY, rorZ}, want: rorZ},
		{name: "unaffiliated contributors are skipped", contributors: []string{"", rorY}, want: rorY},
		{name: "nothing to go on", contributors: []string{"", ""}, wantErr: true},
		{name: "no people at all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &v1.DMP{Contact: v1.Contact{Affiliation: affiliated(tt.contact)}}
			for _, ror := range tt.contributors {
				d.Contributors = append(d.Contributors, v1.Contributor{Name: "x", Affiliation: affiliated(ror)})
			}

			got, err := OwnerOrg(d)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoOwnerOrganization)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerOrg_MajorityProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rors := rapid.SliceOf(rapid.SampledFrom([]string{"", rorX, rorY, rorZ})).Draw(rt, "contributors")

		d := &v1.DMP{}
		counts := map[string]int{}
		first := map[string]int{}
		for i, ror := range rors {
			d.Contributors = append(d.Contributors, v1.Contributor{Name: "x", Affiliation: affiliated(ror)})
			if ror == "" {
				continue
			}
			if _, ok := first[ror]; !ok {
				first[ror] = i
			}
			counts[ror]++
		}

		got, err := OwnerOrg(d)
		if len(counts) == 0 {
			require.ErrorIs(rt, err, ErrNoOwnerOrganization)
			return
		}
		require.NoError(rt, err)
		for ror, n := range counts {
			require.GreaterOrEqual(rt, counts[got], n)
			if n == counts[got] && ror != got {
				require.Less(rt, first[got], first[ror], "tie must go to the first occurrence")
			}
		}
	})
}
