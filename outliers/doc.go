/* Package outliers removes outlier entities from a data frame.

Rows are grouped by an entity identifier column. If any row of an entity has
a numeric value outside the bound of its column, every row of that entity is
removed. Non numeric columns are passed through and never evaluated.

Supported methods:

	std_dev           mean ± num_sd * sample standard deviation
	percentiles       [lower_percentile, upper_percentile] of the column
	z_score           min/max of the values with |z| <= z_score_threshold
	iqr               [Q1 - k*IQR, Q3 + k*IQR]
	isolation_forest  isolation forest on all numeric columns at once

Example:

import (
	"fmt"
	"log"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/damiani91/aprende/outliers"
)

func main() {
	df := dataframe.New(
		series.New([]string{"a", "b", "c", "d", "e"}, series.String, "id"),
		series.New([]float64{1, 2, 3, 4, 100}, series.Float, "amount"),
	)

	clean, err := outliers.Remove(df, "std_dev", outliers.WithIDColumn("id"), outliers.WithNumSD(1))
	if err != nil {
		log.Fatalf("error: %s", err)
	}
	fmt.Println(clean.Col("id").Records()) // [a b c d]
}
*/
package outliers
