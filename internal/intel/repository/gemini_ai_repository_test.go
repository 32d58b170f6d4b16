package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"competitive-intel-agent/internal/intel/dto"
)

func TestUnwrapFence_KeepsCodeBlocksInsideReport(t *testing.T) {
	report := "# Beta Corp\n\n## Tech Stack\n\nThey ship a CLI:\n\n```python\nprint(\"hi\")\n```\n\n## Outlook\n\nGrowing fast."

	assert.Equal(t, report, unwrapFence(report))
}

func TestUnwrapFence_StripsWholeResponseWrapper(t *testing.T) {
	inner := "# Beta Corp\n\nShort report."

	assert.Equal(t, inner, unwrapFence("```markdown\n"+inner+"\n```"))
	assert.Equal(t, inner, unwrapFence("  ```\n"+inner+"\n```  \n"))
}

func TestUnwrapFence_WrappedReportKeepsInnerFences(t *testing.T) {
	inner := "# Report\n\n```go\nfunc main() {}\n```\n\nDone."

	assert.Equal(t, inner, unwrapFence("```markdown\n"+inner+"\n```"))
}

func TestUnwrapFence_PlainResponseTrimmed(t *testing.T) {
	assert.Equal(t, "just prose", unwrapFence("  just prose \n"))
}

func TestDecodeModelJSON_ToleratesFenceWithSurroundingProse(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"description\": \"widgets\", \"industry\": \"manufacturing\"}\n```\nLet me know if you need more."

	var out dto.CompanyProfileResult
	require.NoError(t, decodeModelJSON(raw, &out))
	assert.Equal(t, "widgets", out.Description)
	assert.Equal(t, "manufacturing", out.Industry)
}

func TestDecodeModelJSON_BareObject(t *testing.T) {
	var out dto.CompanyProfileResult
	require.NoError(t, decodeModelJSON(`{"description": "widgets"}`, &out))
	assert.Equal(t, "widgets", out.Description)
}

func TestDecodeModelJSON_MalformedReturnsParseError(t *testing.T) {
	var out dto.CompanyProfileResult
	err := decodeModelJSON("not json at all", &out)
	require.Error(t, err)

	var parseErr *dto.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "not json at all", parseErr.Raw)
}
