package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/domain"
	"github.com/nibbleapp/nibble-server/internal/search"
)

var (
	foodsCategory string
	foodsAllergen string
	searchLimit   int
)

var foodsCmd = &cobra.Command{
	Use:   "foods",
	Short: "Browse the food catalog",
}

var foodsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog foods",
	RunE: func(cmd *cobra.Command, _ []string) error {
		foods := catalog.Default().Find(catalog.Filter{
			Category: foodsCategory,
			Allergen: foodsAllergen,
		})
		return printFoods(cmd.OutOrStdout(), foods)
	},
}

var foodsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Ranked search over the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFoodsSearch,
}

var foodsCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List catalog categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		categories := catalog.Default().Categories()
		if asJSON {
			return printJSON(cmd.OutOrStdout(), categories)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(categories, "\n"))
		return err
	},
}

var foodsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one food",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		foodID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("food id must be a number: %w", err)
		}
		food, ok := catalog.Default().Get(foodID)
		if !ok {
			return fmt.Errorf("food %d not found", foodID)
		}
		return printJSON(cmd.OutOrStdout(), food)
	},
}

func init() {
	foodsListCmd.Flags().StringVar(&foodsCategory, "category", "", "Only foods in this category")
	foodsListCmd.Flags().StringVar(&foodsAllergen, "allergen", "", "Only foods carrying this allergen")
	foodsSearchCmd.Flags().IntVar(&searchLimit, "limit", search.DefaultLimit, "Maximum results")

	foodsCmd.AddCommand(foodsListCmd, foodsSearchCmd, foodsCategoriesCmd, foodsShowCmd)
}

func runFoodsSearch(cmd *cobra.Command, args []string) error {
	cat := catalog.Default()

	// An in-memory index keeps the command independent of a running server.
	index, err := search.NewFoodIndex(search.Options{})
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.IndexFoods(cat.All()); err != nil {
		return err
	}

	res, err := index.Search(context.Background(), search.Params{
		Query: strings.Join(args, " "),
		Limit: searchLimit,
	})
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSCORE")
	for _, hit := range res.Hits {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\n", hit.FoodID, hit.Name, hit.Category, hit.Score)
	}
	fmt.Fprintf(tw, "\n%d of %d matches in %dms\n", len(res.Hits), res.Total, res.TookMs)
	return tw.Flush()
}

func printFoods(w io.Writer, foods []domain.FoodRecord) error {
	if asJSON {
		return printJSON(w, foods)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tALLERGENS\tPET SAFE")
	for _, f := range foods {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", f.ID, f.Name, f.Category, strings.Join(f.Allergens, ", "), f.PetSafe)
	}
	return tw.Flush()
}
