package reporting

import (
	"encoding/xml"
	"fmt"

	"github.com/bijux/atlasctl/types"
)

type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

// EncodeJUnit renders a suite result as a JUnit testsuite with one testcase per row.
func EncodeJUnit(result *types.SuiteResult) ([]byte, error) {
	suite := junitTestSuite{
		Name:      "atlasctl-suite-" + result.Suite,
		Tests:     len(result.Results),
		Failures:  result.Summary.Failed,
		Skipped:   result.Summary.Skipped,
		Time:      seconds(result.Summary.DurationMS),
		TestCases: make([]junitTestCase, 0, len(result.Results)),
	}
	for _, row := range result.Results {
		tc := junitTestCase{
			ClassName: "atlasctl.suite." + result.Suite,
			Name:      row.Label,
			Time:      seconds(row.DurationMS),
		}
		if row.Status == types.StatusFail {
			msg := row.Detail
			if msg == "" {
				msg = "failed"
			}
			tc.Failure = &junitFailure{Message: msg, Text: msg}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	data, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JUnit report: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	return append(out, '\n'), nil
}

// WriteJUnit writes the JUnit report of a suite result to path.
func WriteJUnit(path string, result *types.SuiteResult) error {
	data, err := EncodeJUnit(result)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}
